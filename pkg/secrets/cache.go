package secrets

import (
	"sync"
	"time"
)

// CacheConfig configures the manager's value cache.
type CacheConfig struct {
	// TTL bounds how long a resolved value is reused. Zero disables
	// caching.
	TTL time.Duration `yaml:"ttl"`

	// MaxSize bounds the number of cached values.
	MaxSize int `yaml:"max_size"`
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// cache holds resolved values until they expire. When full, the entry
// closest to expiry is evicted.
type cache struct {
	config  CacheConfig
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newCache(config CacheConfig, now func() time.Time) *cache {
	return &cache{config: config, now: now, entries: make(map[string]cacheEntry)}
}

func (c *cache) enabled() bool {
	return c.config.TTL > 0 && c.config.MaxSize > 0
}

func (c *cache) get(name string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, name)
		return "", false
	}
	return e.value, true
}

func (c *cache) set(name, value string) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; !ok && len(c.entries) >= c.config.MaxSize {
		var oldest string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldest == "" || e.expiresAt.Before(oldestAt) {
				oldest, oldestAt = k, e.expiresAt
			}
		}
		delete(c.entries, oldest)
	}
	c.entries[name] = cacheEntry{value: value, expiresAt: c.now().Add(c.config.TTL)}
}

func (c *cache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
