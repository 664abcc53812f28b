package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

const (
	versionLayout  = "20060102150405"
	upAnnotation   = "-- +goose Up"
	downAnnotation = "-- +goose Down"
	stmtBegin      = "-- +goose StatementBegin"
	stmtEnd        = "-- +goose StatementEnd"
)

var (
	nonSlugRe  = regexp.MustCompile(`[^a-z0-9]+`)
	fileNameRe = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)
)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty timestamped goose migration into dir and
// returns its path. The name is lower-cased and reduced to [a-z0-9_].
func CreateSQLMigration(dir, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format(versionLayout), slug))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, sqlTemplate, slug); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, f.Close()
}

// ValidateDir checks every .sql file in dir: the name must be
// YYYYMMDDHHMMSS_name.sql, versions must be unique, the Up section must come
// before Down, and StatementBegin/End markers must pair up.
func ValidateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := make(map[int64]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		if !fileNameRe.MatchString(name) {
			return fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name)
		}
		version, err := goose.NumericComponent(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if prev, dup := versions[version]; dup {
			return fmt.Errorf("version %d used by both %s and %s", version, prev, name)
		}
		versions[version] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := checkAnnotations(string(body)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func checkAnnotations(sql string) error {
	up := strings.Index(sql, upAnnotation)
	down := strings.Index(sql, downAnnotation)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", upAnnotation)
	case down < 0:
		return fmt.Errorf("missing %q", downAnnotation)
	case down < up:
		return fmt.Errorf("%q must come before %q", upAnnotation, downAnnotation)
	}
	if b, e := strings.Count(sql, stmtBegin), strings.Count(sql, stmtEnd); b != e {
		return fmt.Errorf("%d StatementBegin markers but %d StatementEnd", b, e)
	}
	return nil
}
