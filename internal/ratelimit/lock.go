package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseLease deletes the key only while it still carries the caller's token.
const releaseLease = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockNotConfigured = errors.New("lock client not configured")
	ErrLockKeyEmpty      = errors.New("lock key is empty")
	ErrLockTTL           = errors.New("lock ttl must be positive")
)

// Lease is a held job lock. Token is "<owner>/<nonce>" so a deferred replica
// can log who holds the job.
type Lease struct {
	Key   string
	Token string
}

// Locker hands out single-holder redis leases for scheduler jobs.
type Locker struct {
	client  *redis.Client
	release *redis.Script
	owner   string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(releaseLease),
		owner:   lockOwner(),
	}
}

// Acquire returns a nil lease and nil error when another holder has the key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockNotConfigured
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrLockKeyEmpty
	}
	if ttl <= 0 {
		return nil, ErrLockTTL
	}

	token := l.owner + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{Key: key, Token: token}, nil
}

// Holder names the current owner of key, or "" when the key is free.
func (l *Locker) Holder(ctx context.Context, key string) (string, error) {
	if l == nil || l.client == nil {
		return "", ErrLockNotConfigured
	}
	token, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if i := strings.LastIndex(token, "/"); i > 0 {
		return token[:i], nil
	}
	return token, nil
}

// Release drops the lease if it is still ours. An expired lease that another
// replica has since taken is left alone.
func (l *Locker) Release(ctx context.Context, lease *Lease) error {
	if l == nil || l.client == nil || lease == nil || lease.Token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
