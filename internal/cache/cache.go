// Package cache provides a small keyed TTL cache. It backs read-mostly
// lookups such as the ledger's category picker lists, where the key space is
// tiny and staleness beyond the TTL is acceptable.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache maps string keys to values that expire after a fixed TTL. Safe for
// concurrent use. When full, inserting a new key evicts the entry closest to
// expiry.
type Cache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]entry[T]
}

func New[T any](maxSize int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]entry[T], maxSize),
	}
}

// Get returns the cached value for key. Expired entries are removed and
// reported as a miss.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh TTL.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictSoonest()
	}
	c.entries[key] = entry[T]{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Delete removes key if present. Writers call this to invalidate stale reads.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictSoonest drops the entry with the nearest expiry. Callers hold c.mu.
func (c *Cache[T]) evictSoonest() {
	var victim string
	var soonest time.Time
	first := true
	for key, e := range c.entries {
		if first || e.expiresAt.Before(soonest) {
			victim = key
			soonest = e.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}
