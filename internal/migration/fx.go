package migration

import (
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		log = log.Named("migration")
		if dialect := strings.ToLower(strings.TrimSpace(cfg.DBType)); dialect != "postgres" && dialect != "" {
			log.Info("applying model schema", zap.String("dialect", dialect))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	}),
)
