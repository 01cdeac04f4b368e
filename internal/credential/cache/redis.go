package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "credgate:"

// RedisCache stores credentials in Redis with native per-key expiry, so
// every replica shares the same credentials.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(key Key) string {
	return redisKeyPrefix + key.String()
}

func (c *RedisCache) Get(ctx context.Context, key Key) (string, bool, error) {
	value, err := c.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set issues SET key value EX ttl. go-redis treats a zero expiration as
// "no expiry", hence the explicit guard.
func (c *RedisCache) Set(ctx context.Context, key Key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	if err := c.client.Set(ctx, redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key Key) error {
	if err := c.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// TTL reports the remaining lifetime of key, or false when absent.
func (c *RedisCache) TTL(ctx context.Context, key Key) (time.Duration, bool, error) {
	ttl, err := c.client.TTL(ctx, redisKey(key)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("ttl %s: %w", key, err)
	}
	// -2: missing key, -1: no expiry
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

// Health pings the backing Redis.
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*InMemory)(nil)
)
