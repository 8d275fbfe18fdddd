package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kilekitabu/internal/config"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewTokenBucket),
	fx.Provide(NewLocker),
	fx.Provide(func(p LimiterParams) *Limiter {
		return NewLimiter(p.Cfg, p.Bucket, p.Log, p.ObsMetrics)
	}),
)

type LimiterParams struct {
	fx.In

	Cfg        config.Config
	Bucket     *TokenBucket
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// NewRedisClient returns nil when no redis address is configured; the
// limiter and the scheduler lock both treat that as "not configured".
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RateLimit.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
