package network

import (
	"sync"
	"time"
)

const defaultCacheEntries = 1024

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a TTL cache of query results keyed by query identity. Purge bumps a
// generation counter so that a result computed from data read before the
// purge cannot be stored after it.
type Cache[V any] struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu         sync.Mutex
	entries    map[string]cacheEntry[V]
	generation uint64
}

// NewCache creates a cache whose entries live for ttl. A ttl <= 0 disables
// caching: Get always misses and Set is a no-op.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:        ttl,
		maxEntries: defaultCacheEntries,
		now:        time.Now,
		entries:    make(map[string]cacheEntry[V]),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

// Generation returns the current purge generation, to be passed to
// SetIfGeneration once the value has been computed.
func (c *Cache[V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// SetIfGeneration stores value only if no purge happened since gen was read.
func (c *Cache[V]) SetIfGeneration(key string, value V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.setLocked(key, value)
	return true
}

func (c *Cache[V]) setLocked(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	if len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry[V]{value: value, expires: now.Add(c.ttl)}
}

// evictLocked drops expired entries and, if the cache is still full, the
// entry closest to expiry.
func (c *Cache[V]) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey, oldest = k, e.expires
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry[V])
	c.generation++
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
