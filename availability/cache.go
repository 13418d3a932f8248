/*
cache.go - TTL cache interface and in-memory implementation

PURPOSE:
  The availability list is read far more often than it changes, so List()
  is served through a small key/value cache with a TTL. The cache is a
  collaborator, not a correctness mechanism: every implementation may
  lose entries at any time.

IMPLEMENTATIONS:
  - MemoryCache (this file): process-local, for dev and tests
  - RedisCache (rediscache.go): shared cache for multi-instance deploys
*/
package availability

import (
	"context"
	"sync"
	"time"
)

// Cache is a TTL key/value store. Implementations must treat Get misses
// and expired entries identically.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// MEMORY CACHE - Process-local TTL cache
// =============================================================================

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// NowFunc is injectable for tests; defaults to time.Now.
	NowFunc func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		NowFunc: time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.NowFunc().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.NowFunc().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
