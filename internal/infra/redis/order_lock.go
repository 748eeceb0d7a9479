package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/purchase-notifier/internal/lock"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL = 10 * time.Second
	backoffStep    = 10 * time.Millisecond
	backoffMax     = 100 * time.Millisecond
	lockKeyPrefix  = "purchase-log:order:"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*RedisOrderLock)(nil)

// RedisOrderLock is a per-order mutex backed by Redis SET NX with a TTL.
type RedisOrderLock struct {
	client *goredis.Client
	ttl    time.Duration
	token  func() string
	sleep  func(ctx context.Context, d time.Duration) error
	script *goredis.Script
}

func NewRedisOrderLock(client *goredis.Client, ttl time.Duration) (*RedisOrderLock, error) {
	return newRedisOrderLock(client, ttl, uuid.NewString, sleepWithContext)
}

func newRedisOrderLock(
	client *goredis.Client,
	ttl time.Duration,
	tokenFn func() string,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisOrderLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if tokenFn == nil {
		tokenFn = uuid.NewString
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisOrderLock{
		client: client,
		ttl:    ttl,
		token:  tokenFn,
		sleep:  sleepFn,
		script: releaseScript,
	}, nil
}

func (l *RedisOrderLock) TryAcquire(ctx context.Context, orderID string) (lock.ReleaseFunc, bool, error) {
	if l == nil || l.client == nil || l.script == nil {
		return nil, false, fmt.Errorf("order lock is not initialized")
	}

	normalized := strings.TrimSpace(orderID)
	if normalized == "" {
		return nil, false, fmt.Errorf("order id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := lockKeyPrefix + normalized
	token := l.token()
	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire order lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := l.script.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release order lock: %w", err)
		}
		return nil
	}
	return release, true, nil
}

// Acquire waits for the lock with a bounded backoff until ctx is done or the
// lock TTL has elapsed.
func (l *RedisOrderLock) Acquire(ctx context.Context, orderID string) (lock.ReleaseFunc, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	backoff := backoffStep
	for {
		release, acquired, err := l.TryAcquire(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", lock.ErrNotAcquired, ctx.Err())
			}
			return nil, err
		}
		if acquired {
			return release, nil
		}

		if err := l.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("%w: %v", lock.ErrNotAcquired, err)
		}

		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
