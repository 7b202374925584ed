// Package idempotency caches transition fingerprints in Redis so retried
// orchestrator calls short-circuit cheaply. The cache is best-effort: the
// stage machine always falls back to the stored inputs hash, so a cold or
// unavailable Redis only costs a store read.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dealdesk:transition:"

// RedisCache implements ports.IdempotencyCache on Redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCache) Remember(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Set(ctx, keyPrefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}
