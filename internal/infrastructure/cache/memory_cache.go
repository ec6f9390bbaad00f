package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the single-instance fallback used when no Redis is configured.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	probes  map[string]time.Time
	claimed map[string]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		probes:  make(map[string]time.Time),
		claimed: make(map[string]time.Time),
	}
}

func (c *MemoryCache) RecentlyValid(_ context.Context, shop string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.probes[shop]
	if !ok {
		return false, nil
	}
	if !c.now().Before(exp) {
		delete(c.probes, shop)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) MarkValid(_ context.Context, shop string, ttl time.Duration) error {
	c.mu.Lock()
	c.probes[shop] = c.now().Add(ttl)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Forget(_ context.Context, shop string) error {
	c.mu.Lock()
	delete(c.probes, shop)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if exp, ok := c.claimed[id]; ok && now.Before(exp) {
		return false, nil
	}
	c.claimed[id] = now.Add(ttl)
	c.sweep(now)
	return true, nil
}

func (c *MemoryCache) Release(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.claimed, id)
	c.mu.Unlock()
	return nil
}

// sweep drops expired claims; called with mu held.
func (c *MemoryCache) sweep(now time.Time) {
	for id, exp := range c.claimed {
		if !now.Before(exp) {
			delete(c.claimed, id)
		}
	}
}
