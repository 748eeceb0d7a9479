package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultParameterTTL = 5 * time.Minute
	parameterKeyPrefix  = "config-parameter:"
)

// ParameterCache is a read-through cache for configuration parameters.
type ParameterCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewParameterCache(client *goredis.Client, ttl time.Duration) (*ParameterCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultParameterTTL
	}
	return &ParameterCache{client: client, ttl: ttl}, nil
}

// Get returns the cached value and whether it was present.
func (c *ParameterCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, parameterKeyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached parameter: %w", err)
	}
	return value, true, nil
}

func (c *ParameterCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, parameterKeyPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache parameter: %w", err)
	}
	return nil
}

func (c *ParameterCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, parameterKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached parameter: %w", err)
	}
	return nil
}
