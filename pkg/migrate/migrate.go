package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// Commands accepted by Runner.Run.
var Commands = []string{"up", "down", "redo", "status"}

// Runner applies the SQL migrations through a goose provider.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

// NewRunner reads Postgres migrations from dir. The provider shares db with
// the caller and never closes it.
func NewRunner(db *sql.DB, dir string, logg *logger.Logger) (*Runner, error) {
	if dir == "" {
		return nil, errors.New("migrations dir is required")
	}
	return newRunner(goose.DialectPostgres, db, os.DirFS(dir), logg)
}

func newRunner(dialect goose.Dialect, db *sql.DB, fsys fs.FS, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Run executes one of Commands.
func (r *Runner) Run(ctx context.Context, command string) error {
	switch command {
	case "up":
		results, err := r.provider.Up(ctx)
		r.logResults(ctx, results)
		return wrapCommand(command, err)
	case "down":
		result, err := r.provider.Down(ctx)
		r.logResults(ctx, []*goose.MigrationResult{result})
		return wrapCommand(command, err)
	case "redo":
		down, err := r.provider.Down(ctx)
		r.logResults(ctx, []*goose.MigrationResult{down})
		if err != nil {
			return wrapCommand(command, err)
		}
		up, err := r.provider.UpByOne(ctx)
		r.logResults(ctx, []*goose.MigrationResult{up})
		return wrapCommand(command, err)
	case "status":
		return r.status(ctx)
	}
	return fmt.Errorf("unknown migrate command %q", command)
}

// MigrateTo moves the schema up or down until it sits at target.
func (r *Runner) MigrateTo(ctx context.Context, target int64) error {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		r.logg.Info(r.logg.WithField(ctx, "version", current), "schema already at target version")
		return nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	r.logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

func (r *Runner) status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return wrapCommand("status", err)
	}
	for _, st := range statuses {
		fields := map[string]any{
			"version": st.Source.Version,
			"file":    st.Source.Path,
			"state":   string(st.State),
		}
		if !st.AppliedAt.IsZero() {
			fields["applied_at"] = st.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migration status")
	}
	return nil
}

func (r *Runner) logResults(ctx context.Context, results []*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		entry := r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
			"empty":       res.Empty,
		})
		if res.Error != nil {
			r.logg.Error(entry, "migration failed", res.Error)
			continue
		}
		r.logg.Info(entry, "migration applied")
	}
}

func wrapCommand(command string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}

// ParseVersion reads a YYYYMMDDHHMMSS target version.
func ParseVersion(value string) (int64, error) {
	if len(value) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", value)
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", value)
	}
	return v, nil
}

// IsCommand reports whether name is accepted by Runner.Run.
func IsCommand(name string) bool {
	return slices.Contains(Commands, name)
}
