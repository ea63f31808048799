// Package cache holds small in-process caches with an injectable clock.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// Entry is a cached value together with the moment it was stored.
type Entry[V any] struct {
	Value     V
	CheckedAt time.Time
}

// TTLCache keeps values for a fixed duration. It replaces ambient package-level state
// such as token and connection-health caches.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   Clock
	items map[K]Entry[V]
}

// NewTTLCache returns an empty cache. A nil clock uses time.Now.
func NewTTLCache[K comparable, V any](ttl time.Duration, clock Clock) *TTLCache[K, V] {
	if clock == nil {
		clock = time.Now
	}
	return &TTLCache[K, V]{ttl: ttl, now: clock, items: make(map[K]Entry[V])}
}

// Get returns the value for key when it has not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	e, ok := c.Lookup(key)
	return e.Value, ok
}

// Lookup returns the entry with its last-checked timestamp.
func (c *TTLCache[K, V]) Lookup(key K) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return Entry[V]{}, false
	}
	if c.now().Sub(e.CheckedAt) >= c.ttl {
		delete(c.items, key)
		return Entry[V]{}, false
	}
	return e, true
}

// Set stores value under key using the default TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = Entry[V]{Value: value, CheckedAt: c.now()}
}

// SetUntil stores value so that it expires at the given instant, for values that carry
// their own lifetime (OAuth tokens).
func (c *TTLCache[K, V]) SetUntil(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = Entry[V]{Value: value, CheckedAt: expiresAt.Add(-c.ttl)}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len counts entries, expired ones included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
