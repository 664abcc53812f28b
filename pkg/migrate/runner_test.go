package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/dbtest"
)

func sqliteRunner(t *testing.T) *Runner {
	t.Helper()
	sqlDB, err := dbtest.New(t).DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	fsys := fstest.MapFS{
		"20260301000000_grades.sql":  {Data: []byte("-- +goose Up\nCREATE TABLE crop_grades (id INTEGER PRIMARY KEY);\n-- +goose Down\nDROP TABLE crop_grades;\n")},
		"20260302000000_regions.sql": {Data: []byte("-- +goose Up\nCREATE TABLE regions (id INTEGER PRIMARY KEY);\n-- +goose Down\nDROP TABLE regions;\n")},
	}
	runner, err := newRunner(goose.DialectSQLite3, sqlDB, fsys, nil)
	if err != nil {
		t.Fatalf("newRunner: %v", err)
	}
	return runner
}

func dbVersion(t *testing.T, r *Runner) int64 {
	t.Helper()
	v, err := r.provider.GetDBVersion(context.Background())
	if err != nil {
		t.Fatalf("GetDBVersion: %v", err)
	}
	return v
}

func TestRunnerUpDownRedo(t *testing.T) {
	ctx := context.Background()
	r := sqliteRunner(t)

	if err := r.Run(ctx, "up"); err != nil {
		t.Fatalf("up: %v", err)
	}
	if v := dbVersion(t, r); v != 20260302000000 {
		t.Fatalf("expected latest version, got %d", v)
	}
	// nothing pending is not an error
	if err := r.Run(ctx, "up"); err != nil {
		t.Fatalf("second up: %v", err)
	}
	if err := r.Run(ctx, "redo"); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if v := dbVersion(t, r); v != 20260302000000 {
		t.Fatalf("redo should land on the same version, got %d", v)
	}
	if err := r.Run(ctx, "down"); err != nil {
		t.Fatalf("down: %v", err)
	}
	if v := dbVersion(t, r); v != 20260301000000 {
		t.Fatalf("expected one step back, got %d", v)
	}
	if err := r.Run(ctx, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := r.Run(ctx, "drop-everything"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestRunnerMigrateTo(t *testing.T) {
	ctx := context.Background()
	r := sqliteRunner(t)

	if err := r.MigrateTo(ctx, 20260301000000); err != nil {
		t.Fatalf("migrate up to: %v", err)
	}
	if v := dbVersion(t, r); v != 20260301000000 {
		t.Fatalf("expected first version, got %d", v)
	}
	if err := r.MigrateTo(ctx, 20260302000000); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if err := r.MigrateTo(ctx, 20260301000000); err != nil {
		t.Fatalf("migrate down to: %v", err)
	}
	if v := dbVersion(t, r); v != 20260301000000 {
		t.Fatalf("expected rollback to first version, got %d", v)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := ParseVersion("20260301000000"); err != nil || v != 20260301000000 {
		t.Fatalf("unexpected parse result %d %v", v, err)
	}
	for _, bad := range []string{"", "2026", "2026030100000x", "-0260301000000"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
