package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/kilekitabu/internal/config"
	obslogger "github.com/smallbiznis/kilekitabu/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the ledger database with tracing and pool metrics attached.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	db, err := Open(dialector, PoolConfigFrom(cfg))
	if err != nil {
		return nil, err
	}

	if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBName))); err != nil {
		return nil, fmt.Errorf("otelgorm: %w", err)
	}
	if err := db.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, fmt.Errorf("gorm prometheus: %w", err)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				if log != nil {
					log.Info("closing database")
				}
				return sqlDB.Close()
			},
		})
	}
	return db, nil
}

// Open builds a gorm handle with the zap query logger and pool limits.
func Open(dialector gorm.Dialector, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConn)
	}
	if pool.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConn)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	return db, nil
}
