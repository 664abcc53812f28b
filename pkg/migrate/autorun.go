package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date in dev when AutoMigrate is on.
// Postgres runs the goose migrations; the SQLite dev driver uses AutoMigrate
// because the SQL files target Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})

	if !db.SupportsRowLocks(client.DB()) {
		logg.Info(ctx, "running gorm auto-migrate (sqlite dev)")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	runner, err := NewRunner(sqlDB, DefaultDir, logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "running goose migrations (dev auto-run)")
	if err := runner.Run(ctx, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "goose migrations completed")
	return nil
}
