package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/config"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"go.uber.org/zap"
)

const keyUserEndpoint = "kilekitabu:ratelimit:%s:%s"

// Limiter throttles per-user calls to metered endpoints. A nil or disabled
// limiter allows everything.
type Limiter struct {
	bucket     *TokenBucket
	rate       float64
	burst      int
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

func NewLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger, obs *obsmetrics.Metrics) *Limiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || bucket == nil {
		return nil
	}
	if limitCfg.UsageRate <= 0 || limitCfg.UsageBurst <= 0 {
		log.Warn("rate limit disabled: usage rate and burst must be positive")
		return nil
	}
	return &Limiter{
		bucket:     bucket,
		rate:       limitCfg.UsageRate,
		burst:      limitCfg.UsageBurst,
		log:        log.Named("ratelimit"),
		obsMetrics: obs,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowUser takes a token from the user's bucket for endpoint. Redis errors
// fail open.
func (l *Limiter) AllowUser(ctx context.Context, endpoint, userID string) *RateLimitResult {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}
	}
	key := fmt.Sprintf(keyUserEndpoint, strings.TrimSpace(endpoint), strings.TrimSpace(userID))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
		return &RateLimitResult{Allowed: true}
	}
	if res.Allowed {
		l.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
	} else {
		l.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "user_bucket_empty")
	}
	return res
}
