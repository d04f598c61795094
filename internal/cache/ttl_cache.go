// Package cache provides thread-safe caching utilities with time-based expiration.
package cache

import (
	"sync"
	"time"
)

// Clock supplies the current time. Tests substitute a fake clock so expiry
// can be exercised without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// entry is a cached value with its expiry timestamp.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache with per-entry time-based expiration.
// Expiry is checked on read: a lookup at or after an entry's expiry is a
// miss and drops the entry. No background goroutine is involved.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]entry[V]
	ttl   time.Duration
	clock Clock
}

// New creates a new TTLCache with the given TTL duration using the wall clock.
func New[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return NewWithClock[K, V](ttl, SystemClock{})
}

// NewWithClock creates a new TTLCache that reads time from clock.
func NewWithClock[K comparable, V any](ttl time.Duration, clock Clock) *TTLCache[K, V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTLCache[K, V]{
		data:  make(map[K]entry[V]),
		ttl:   ttl,
		clock: clock,
	}
}

// Get retrieves a value from the cache.
// Returns the value and ok=true if the key exists and has not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.deleteIfExpired(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value that expires one TTL from now.
func (c *TTLCache[K, V]) Set(key K, value V) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		c.data = make(map[K]entry[V])
	}
	c.data[key] = entry[V]{
		value:     value,
		expiresAt: now.Add(c.ttl),
	}
}

// deleteIfExpired removes key only if it is still expired under the write
// lock, so a concurrent Set that refreshed it is kept.
func (c *TTLCache[K, V]) deleteIfExpired(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.data[key]; ok && !c.clock.Now().Before(e.expiresAt) {
		delete(c.data, key)
	}
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTLCache[K, V]) Purge() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of items currently in the cache.
// This does not check expiration - it returns the count even if expired.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
