package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func redisIntegrationCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run Redis integration tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := NewRedisCache(ctx, addr, os.Getenv("TEST_REDIS_PASSWORD"), 0, "it:"+uuid.NewString()+":")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCacheValidityRoundTrip(t *testing.T) {
	c := redisIntegrationCache(t)
	ctx := context.Background()
	shop := "demo.myshopify.com"

	if ok, err := c.RecentlyValid(ctx, shop); err != nil || ok {
		t.Fatalf("empty cache = %v, %v", ok, err)
	}
	if err := c.MarkValid(ctx, shop, time.Minute); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if ok, err := c.RecentlyValid(ctx, shop); err != nil || !ok {
		t.Fatalf("after mark = %v, %v", ok, err)
	}
	if err := c.Forget(ctx, shop); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if ok, _ := c.RecentlyValid(ctx, shop); ok {
		t.Fatal("forgotten shop still valid")
	}
}

func TestRedisCacheValidityExpires(t *testing.T) {
	c := redisIntegrationCache(t)
	ctx := context.Background()

	if err := c.MarkValid(ctx, "demo.myshopify.com", 50*time.Millisecond); err != nil {
		t.Fatalf("mark: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if ok, _ := c.RecentlyValid(ctx, "demo.myshopify.com"); ok {
		t.Fatal("entry outlived its ttl")
	}
}

func TestRedisCacheClaimIsExclusive(t *testing.T) {
	c := redisIntegrationCache(t)
	ctx := context.Background()

	first, err := c.Claim(ctx, "w-1", time.Minute)
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v", first, err)
	}
	second, err := c.Claim(ctx, "w-1", time.Minute)
	if err != nil || second {
		t.Fatalf("second claim = %v, %v", second, err)
	}
	if err := c.Release(ctx, "w-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := c.Claim(ctx, "w-1", time.Minute)
	if err != nil || !again {
		t.Fatalf("claim after release = %v, %v", again, err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
