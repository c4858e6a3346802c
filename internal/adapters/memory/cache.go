package memory

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned by Get for absent or expired keys.
var ErrMiss = errors.New("cache miss")

type item struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-process ports.CacheService used when no Valkey address is
// configured. Expired entries are dropped lazily on read.
type Cache struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{items: make(map[string]item), now: time.Now}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !it.expiresAt.IsZero() && !c.now().Before(it.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, ErrMiss
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

// Set stores value. A non-positive ttlSeconds keeps the entry until deleted.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	it := item{value: append([]byte(nil), value...)}
	if ttlSeconds > 0 {
		it.expiresAt = c.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
