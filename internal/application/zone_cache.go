package application

import (
	"sync"
	"time"
)

// zoneCache memoises time.LoadLocation lookups for studio timezones. Invalid
// names are cached as misses so a bad value is not re-read from tzdata on
// every run.
type zoneCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	load       func(name string) (*time.Location, error)
	entries    map[string]zoneCacheEntry
}

type zoneCacheEntry struct {
	loc       *time.Location
	err       error
	expiresAt time.Time
}

func newZoneCache(ttl time.Duration, maxEntries int, now func() time.Time) *zoneCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &zoneCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		load:       time.LoadLocation,
		entries:    make(map[string]zoneCacheEntry),
	}
}

// Lookup resolves name, loading it on a miss or after expiry.
func (c *zoneCache) Lookup(name string) (*time.Location, error) {
	if c == nil {
		return time.LoadLocation(name)
	}
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if ok && !c.now().After(entry.expiresAt) {
		return entry.loc, entry.err
	}

	loc, err := c.load(name)
	c.store(name, zoneCacheEntry{loc: loc, err: err, expiresAt: c.now().Add(c.ttl)})
	return loc, err
}

func (c *zoneCache) store(name string, entry zoneCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, exists := c.entries[name]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[name] = entry
}

func (c *zoneCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *zoneCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func (c *zoneCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
