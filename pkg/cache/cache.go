package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache is a small in-memory TTL cache. Expired entries are dropped lazily
// on read; Purge can be called from a maintenance loop if growth matters.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{items: map[string]entry[T]{}}
}

// Set stores a value under key for the given TTL.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[T]{value: value, expiresAt: time.Now().Add(ttl)}
}

// Get returns the value for key if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		var zero T
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	return e.value, true
}

// Delete removes a key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// InvalidatePrefix removes every key with the given prefix.
func (c *Cache[T]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Purge removes all expired entries and returns how many were dropped.
func (c *Cache[T]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	dropped := 0
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
