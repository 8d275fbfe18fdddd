package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// gcraScript keeps a single "theoretical arrival time" per key instead of a
// token count, which behaves like a token bucket of size burst refilled at
// one token per emission interval. All times are redis milliseconds.
//
// Returns {allowed, remaining, retry_after_ms, reset_after_ms}.
const gcraScript = `
local emission = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local tat = tonumber(redis.call("GET", KEYS[1]))
if tat == nil or tat < now then
  tat = now
end

local tolerance = emission * burst
local next_tat = tat + emission
local allow_at = next_tat - tolerance

if allow_at > now then
  local remaining = math.floor((tolerance - (tat - now)) / emission)
  return {0, remaining, allow_at - now, tat - now}
end

redis.call("SET", KEYS[1], next_tat, "PX", math.ceil(next_tat - now))
local remaining = math.floor((tolerance - (next_tat - now)) / emission)
return {1, remaining, 0, next_tat - now}
`

// TokenBucket meters per-key call rates in redis.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

var (
	errBucketNotConfigured = errors.New("rate limiter not configured")
	errBucketKeyEmpty      = errors.New("rate limiter key is empty")
	errBucketRate          = errors.New("rate limiter rate and burst must be positive")
)

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(gcraScript),
	}
}

// Allow spends one call from key's allowance. rate is calls per second and
// burst the number of calls that may arrive back to back.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	denied := &RateLimitResult{Limit: burst}
	switch {
	case t == nil || t.client == nil:
		return denied, errBucketNotConfigured
	case key == "":
		return denied, errBucketKeyEmpty
	case rate <= 0 || burst <= 0:
		return denied, errBucketRate
	}

	emissionMS := int64(math.Ceil(1000 / rate))
	if emissionMS < 1 {
		emissionMS = 1
	}
	reply, err := t.script.Run(ctx, t.client, []string{key}, emissionMS, burst).Int64Slice()
	if err != nil {
		return denied, err
	}
	if len(reply) != 4 {
		return denied, errors.New("rate limit script returned " + strconv.Itoa(len(reply)) + " values")
	}

	now := time.Now()
	remaining := int(reply[1])
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Limit:      burst,
		Remaining:  remaining,
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
		ResetTime:  now.Add(time.Duration(reply[3]) * time.Millisecond),
	}, nil
}
