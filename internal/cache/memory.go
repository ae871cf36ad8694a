package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a bounded in-process Cache with FIFO eviction. Suitable
// for single-instance deployments and tests.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	order      []string
	maxEntries int
	ttl        time.Duration
	hits       int64
	misses     int64
}

// NewMemoryCache creates a memory cache holding at most maxEntries results.
// A zero ttl disables expiry.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryCache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, nil
	}
	if c.ttl > 0 && time.Since(entry.CachedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, nil
	}

	c.hits++
	return entry, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.CachedAt = time.Now()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.order = nil
	return nil
}

// Stats implements Cache.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, HitRate: rate(c.hits, c.misses)}
}

// Close implements Cache.
func (c *MemoryCache) Close() error { return nil }

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
