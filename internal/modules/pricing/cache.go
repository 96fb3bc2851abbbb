// Package pricing resolves item prices for the accept/decline policy. A
// bounded in-memory cache sits in front of a persistent cache which sits in
// front of the marketplace price API; the policy only ever sees the oracle.
package pricing

import (
	"sync"
	"time"

	"github.com/skinflow/tradebot/internal/domain"
)

var _ domain.Cache = (*BoundedCache)(nil)

// BoundedCache is a size-capped in-memory price cache with per-entry TTL.
// When full, the entry closest to expiry is evicted first.
type BoundedCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	value     float64
	expiresAt time.Time
}

// NewBoundedCache creates a cache holding at most maxSize entries, each
// valid for ttl after being set.
func NewBoundedCache(maxSize int, ttl time.Duration) *BoundedCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &BoundedCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and not expired.
func (c *BoundedCache) Get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return 0, false
	}
	return entry.value, true
}

// Set stores a value, evicting if the cache is at capacity.
func (c *BoundedCache) Set(key string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes a key.
func (c *BoundedCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, including any not yet swept expired ones.
func (c *BoundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// PurgeExpired removes every expired entry and reports how many were dropped.
func (c *BoundedCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	purged := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			purged++
		}
	}
	return purged
}

// evictLocked drops expired entries, or failing that the entry closest to
// expiry. Caller holds the lock.
func (c *BoundedCache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldestExpiry time.Time
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			return
		}
		if oldestKey == "" || entry.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
