package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// autoRun reports whether services migrate on boot: always for sqlite, and for
// postgres only in dev with STOREFRONT_AUTO_MIGRATE set.
func autoRun(cfg *config.Config) bool {
	return cfg.DB.IsSQLite() || (cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate)
}

// MaybeRunDev applies pending embedded migrations when autoRun allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !autoRun(cfg) {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := New(sqlDB, client.Dialect(), "")
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "dialect", client.Dialect())
	steps, err := m.Up(ctx)
	if err != nil {
		return err
	}
	for _, step := range steps {
		logg.Debug(logg.WithFields(ctx, map[string]any{
			"version":     step.Version,
			"path":        step.Path,
			"duration_ms": step.Duration.Milliseconds(),
		}), "migrate.applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(steps)), "migrate.autorun.complete")
	return nil
}
