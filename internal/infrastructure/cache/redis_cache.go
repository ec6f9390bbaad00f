package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the probe cache and webhook de-duplication with Redis so
// several app instances share them.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *RedisCache) probeKey(shop string) string { return c.prefix + "probe:" + shop }
func (c *RedisCache) webhookKey(id string) string { return c.prefix + "webhook:" + id }

func (c *RedisCache) RecentlyValid(ctx context.Context, shop string) (bool, error) {
	_, err := c.client.Get(ctx, c.probeKey(shop)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read probe cache: %w", err)
	}
	return true, nil
}

func (c *RedisCache) MarkValid(ctx context.Context, shop string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.probeKey(shop), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to write probe cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Forget(ctx context.Context, shop string) error {
	if err := c.client.Del(ctx, c.probeKey(shop)).Err(); err != nil {
		return fmt.Errorf("failed to clear probe cache: %w", err)
	}
	return nil
}

// Claim uses SETNX so exactly one instance processes a delivery id.
func (c *RedisCache) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.webhookKey(id), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook %s: %w", id, err)
	}
	return ok, nil
}

func (c *RedisCache) Release(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.webhookKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to release webhook %s: %w", id, err)
	}
	return nil
}
