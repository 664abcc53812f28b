package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: "+knownCommands())
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "abort database commands after this long")
	flag.Parse()
	// `migrate status` reads better than `migrate -cmd=status`.
	if flag.NArg() > 0 {
		opts.cmd = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// create and validate only touch the filesystem.
	switch opts.cmd {
	case "create":
		if strings.TrimSpace(opts.name) == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return fmt.Errorf("validate %s: %w", opts.dir, err)
		}
		fmt.Println("migration validation passed")
		return nil
	case "version":
	default:
		if !migrate.IsCommand(opts.cmd) {
			return fmt.Errorf("unknown command %q (known: %s)", opts.cmd, knownCommands())
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
		"driver": cfg.DB.Driver,
	})
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	// The SQL files are Postgres-only; the SQLite dev database is built from the models.
	if !db.SupportsRowLocks(dbClient.DB()) {
		if opts.cmd != "up" {
			return fmt.Errorf("%s requires postgres; sqlite only supports up", opts.cmd)
		}
		if err := dbClient.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite auto-migrate: %w", err)
		}
		logg.Info(ctx, "sqlite schema migrated")
		return nil
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, opts.dir, logg)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	if opts.cmd == "version" {
		target, err := migrate.ParseVersion(opts.version)
		if err != nil {
			return err
		}
		err = runner.MigrateTo(ctx, target)
	} else {
		err = runner.Run(ctx, opts.cmd)
	}
	if err != nil {
		return err
	}
	logg.Info(ctx, "migration command finished")
	return nil
}

func knownCommands() string {
	names := append([]string{"create", "validate", "version"}, migrate.Commands...)
	sort.Strings(names)
	return strings.Join(names, "|")
}
