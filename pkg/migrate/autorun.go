package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MaybeRunDev brings a dev Postgres database up to date on boot when
// STOREFRONT_AUTO_MIGRATE is set. Permission and legacy discount seeds ride
// along with the schema.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case !cfg.App.IsDev(), !cfg.FeatureFlags.AutoMigrate:
		return nil
	case cfg.FeatureFlags.UseSQLite:
		logg.Warn(ctx, "auto-migrate skipped: migrations target postgres only")
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, logg)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	if err := runner.Run(ctx, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "dev auto-migrate complete")
	return nil
}
