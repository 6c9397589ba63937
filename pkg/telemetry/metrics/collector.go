package metrics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidConfig indicates an invalid metrics configuration.
var ErrInvalidConfig = errors.New("invalid metrics configuration")

// Config configures the collector.
type Config struct {
	// Enabled turns recording on. A disabled collector ignores updates.
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name component.
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are histogram buckets in seconds for validation and
	// stage durations.
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// MaxCardinality bounds distinct label sets per metric family. Excess
	// entity types are recorded as "other".
	MaxCardinality int `yaml:"max_cardinality"`
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Namespace: "recordguard",
		Subsystem: "validation",
		// Record validation is in-process; most calls finish well under 10ms.
		DurationBuckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		MaxCardinality:  1000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxCardinality < 0 {
		return fmt.Errorf("%w: max_cardinality cannot be negative", ErrInvalidConfig)
	}
	for i := 1; i < len(c.DurationBuckets); i++ {
		if c.DurationBuckets[i] <= c.DurationBuckets[i-1] {
			return fmt.Errorf("%w: duration_buckets must be increasing", ErrInvalidConfig)
		}
	}
	return nil
}

// Collector records RecordGuard metrics in a Prometheus registry. All
// methods are safe for concurrent use and on a nil Collector.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	validationMetrics *ValidationMetrics
	cacheMetrics      *CacheMetrics
	auditMetrics      *AuditMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering its metrics in registry. If
// registry is nil a new one is created. Empty fields of cfg take defaults.
//
//	collector := metrics.NewCollector(metrics.DefaultConfig(), nil)
//	http.Handle("/metrics", collector.Handler())
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	defaults := DefaultConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = defaults.Namespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = defaults.Subsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = defaults.DurationBuckets
	}
	if cfg.MaxCardinality == 0 {
		cfg.MaxCardinality = defaults.MaxCardinality
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		validationMetrics:  NewValidationMetrics(cfg, registry),
		cacheMetrics:       NewCacheMetrics(cfg, registry),
		auditMetrics:       NewAuditMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxCardinality),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// entityLabel folds entity types beyond the cardinality limit into "other".
func (c *Collector) entityLabel(entityType string) string {
	if c.cardinalityLimiter.Allow(entityType) {
		return entityType
	}
	return "other"
}

// RecordValidation records a completed validation.
//
// Parameters:
//   - entityType: Validated entity type
//   - outcome: "valid", "invalid" or "failed"
//   - duration: Total pipeline time
func (c *Collector) RecordValidation(entityType, outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.validationMetrics.RecordValidation(c.entityLabel(entityType), outcome, duration)
}

// RecordStage records the duration of one pipeline stage.
func (c *Collector) RecordStage(entityType, stage string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.validationMetrics.RecordStage(c.entityLabel(entityType), stage, duration)
}

// RecordFinding records an error or warning code produced by a validation.
//
// Parameters:
//   - entityType: Validated entity type
//   - kind: "error" or "warning"
//   - code: Finding code, e.g. "SQL_INJECTION_DETECTED"
func (c *Collector) RecordFinding(entityType, kind, code string) {
	if !c.enabled() {
		return
	}
	c.validationMetrics.RecordFinding(c.entityLabel(entityType), kind, code)
}

// RecordBatch records the size of a batch validation.
func (c *Collector) RecordBatch(size int) {
	if !c.enabled() {
		return
	}
	c.validationMetrics.RecordBatch(size)
}

// RecordCacheHit records a result cache hit.
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a result cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordMiss(cacheName)
}

// UpdateCacheSize sets the number of cached entries.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordAuditEntry records an audit entry by category.
func (c *Collector) RecordAuditEntry(category string) {
	if !c.enabled() {
		return
	}
	c.auditMetrics.RecordEntry(category)
}

// RecordAuditDrop records audit entries evicted from the in-memory log.
func (c *Collector) RecordAuditDrop(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.auditMetrics.RecordDrop(n)
}

// RecordAuditSinkError records a failed write to the durable audit sink.
func (c *Collector) RecordAuditSinkError() {
	if !c.enabled() {
		return
	}
	c.auditMetrics.RecordSinkError()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or fits under the
// limit, tracking it in the latter case.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
