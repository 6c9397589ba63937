package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"recordguard-hq/recordguard/pkg/validation"
)

// ErrInvalidConfig indicates an invalid cache configuration.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// Config configures a Cache.
type Config struct {
	// TTL is how long a cached result stays fresh.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the cache. The least recently used entry is
	// evicted when full. 0 means unlimited.
	MaxEntries int `yaml:"max_entries"`

	// SweepSchedule is a cron expression for removing expired entries,
	// e.g. "@every 1m". Empty disables scheduled sweeps.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		TTL:           5 * time.Minute,
		MaxEntries:    10000,
		SweepSchedule: "@every 1m",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max_entries cannot be negative", ErrInvalidConfig)
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return fmt.Errorf("%w: invalid sweep schedule %q: %v", ErrInvalidConfig, c.SweepSchedule, err)
		}
	}
	return nil
}

type entry struct {
	result     *validation.Result
	expiresAt  time.Time
	lastAccess time.Time
}

// Stats are cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
	Entries   int   `json:"entries"`
}

// Cache holds validation results for a fixed time. Concurrent loads of the
// same key are collapsed into one. Results are copied in and out, so
// callers may modify what they get.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	config *Config
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time

	hits, misses, evictions, expired atomic.Int64

	cronMu  sync.Mutex
	cron    *cron.Cron
	running bool
}

// New creates a cache. A nil config uses DefaultConfig.
func New(config *Config, logger *slog.Logger) (*Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*entry),
		config:  config,
		logger:  logger.With("component", "cache"),
		now:     time.Now,
		cron:    cron.New(),
	}, nil
}

// Key derives the cache key of validating record under vctx. The key covers
// the whole context, so callers with different permissions or compliance
// context never share results.
func Key(record validation.Record, vctx *validation.Context) (string, error) {
	h := sha256.New()
	enc := msgpack.NewEncoder(h)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if err := enc.Encode(vctx); err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	var entityType, op, id string
	if vctx != nil {
		entityType, op, id = vctx.EntityType, string(vctx.Operation), vctx.EntityID
	}
	return entityType + ":" + op + ":" + id + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns a fresh cached result.
func (c *Cache) Get(key string) (*validation.Result, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.entries[key]
	fresh := ok && now.Before(e.expiresAt)
	c.mu.RUnlock()
	if !fresh {
		c.misses.Add(1)
		return nil, false
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.lastAccess = now
	}
	c.mu.Unlock()
	c.hits.Add(1)
	return e.result.Clone(), true
}

// Set stores result under key.
func (c *Cache) Set(key string, result *validation.Result) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
		c.evictLRU()
	}
	c.entries[key] = &entry{
		result:     result.Clone(),
		expiresAt:  now.Add(c.config.TTL),
		lastAccess: now,
	}
}

// GetOrLoad returns the cached result for key or calls load once for all
// concurrent callers of the same key. Failed loads are not cached. hit
// reports whether the result came from the cache.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (*validation.Result, error)) (result *validation.Result, hit bool, err error) {
	if r, ok := c.Get(key); ok {
		return r, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		r, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, r)
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*validation.Result).Clone(), false, nil
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Expired:   c.expired.Load(),
		Entries:   c.Len(),
	}
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.expired.Add(int64(removed))
	if removed > 0 {
		c.logger.Debug("expired cache entries removed", "removed", removed, "remaining", len(c.entries))
	}
	return removed
}

// evictLRU must be called with the write lock held.
func (c *Cache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.lastAccess.Before(oldest) {
			oldestKey, oldest = key, e.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions.Add(1)
	}
}

// Start schedules sweeps. It does nothing without a schedule. The schedule
// stops when ctx is cancelled or Stop is called.
func (c *Cache) Start(ctx context.Context) error {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()

	if c.config.SweepSchedule == "" || c.running {
		return nil
	}
	if _, err := c.cron.AddFunc(c.config.SweepSchedule, func() { c.Sweep() }); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	c.cron.Start()
	c.running = true
	c.logger.Info("cache sweep scheduled", "schedule", c.config.SweepSchedule, "ttl", c.config.TTL)

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}

// Stop stops scheduled sweeps and waits for a running sweep to finish.
func (c *Cache) Stop() {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()

	if !c.running {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
}

// IsRunning reports whether sweeps are scheduled.
func (c *Cache) IsRunning() bool {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	return c.running
}
