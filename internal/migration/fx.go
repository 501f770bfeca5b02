package migration

import (
	"github.com/smallbiznis/seatfee/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module applies the embedded migrations on start. Only postgres is
// migrated; other dialects are expected to be provisioned out of band.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.MigrateOnStart {
			return nil
		}
		if cfg.DBType != "postgres" {
			log.Warn("skipping migrations for non-postgres database", zap.String("db_type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB, log.Named("migration"))
	}),
)
