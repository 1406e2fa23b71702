// Package cache implements the result cache in process memory or in Redis.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload []byte
	expires time.Time
}

// MemoryCache keeps up to limit entries for ttl. The oldest entry is evicted
// when the cache is full.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	order   []string
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache(ttl time.Duration, limit int) *MemoryCache {
	if limit <= 0 {
		limit = 256
	}
	return &MemoryCache{entries: make(map[string]entry), ttl: ttl, limit: limit, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, id string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		c.remove(id)
		return nil, false, nil
	}
	return append([]byte(nil), e.payload...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, id string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		c.remove(id)
	}
	for len(c.order) >= c.limit {
		c.remove(c.order[0])
	}
	c.entries[id] = entry{payload: append([]byte(nil), payload...), expires: c.now().Add(c.ttl)}
	c.order = append(c.order, id)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) remove(id string) {
	delete(c.entries, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
