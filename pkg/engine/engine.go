package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/cache"
	"recordguard-hq/recordguard/pkg/compliance"
	"recordguard-hq/recordguard/pkg/quality"
	"recordguard-hq/recordguard/pkg/sanitizer"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/security"
	"recordguard-hq/recordguard/pkg/telemetry/metrics"
	"recordguard-hq/recordguard/pkg/telemetry/tracing"
)

// Engine runs records through the validation pipeline:
//
//	schema -> sanitize -> business rules -> security -> compliance -> quality
//
// Each stage sees the sanitized record of the previous stages when one
// exists. The engine is safe for concurrent use.
type Engine struct {
	config *Config
	logger *slog.Logger

	registry   *schema.Registry
	sanitizer  *sanitizer.Sanitizer
	security   *security.Validator
	compliance *compliance.Validator
	quality    *quality.Validator
	ring       *audit.Ring

	cache     *cache.Cache
	collector *metrics.Collector
	tracer    *tracing.Tracer

	listenersMu sync.RWMutex
	listeners   []Listener

	stats *statsWindow
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the schema registry. It is shared with the security and
// compliance validators built by the engine.
func WithRegistry(r *schema.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithSanitizer sets the input sanitizer.
func WithSanitizer(s *sanitizer.Sanitizer) Option {
	return func(e *Engine) { e.sanitizer = s }
}

// WithSecurity sets the security validator.
func WithSecurity(v *security.Validator) Option {
	return func(e *Engine) { e.security = v }
}

// WithCompliance sets the compliance validator.
func WithCompliance(v *compliance.Validator) Option {
	return func(e *Engine) { e.compliance = v }
}

// WithQuality sets the quality validator.
func WithQuality(v *quality.Validator) Option {
	return func(e *Engine) { e.quality = v }
}

// WithAudit sets the audit log shared by the engine and the validators it
// builds.
func WithAudit(ring *audit.Ring) Option {
	return func(e *Engine) { e.ring = ring }
}

// WithCache enables result caching.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics sets the prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

// WithClock sets the time source of the engine and of the validators it
// builds.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. Components not supplied through options are built
// with their default configuration, sharing one schema registry and one
// audit log.
func New(config *Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config: config,
		logger: logger.With("component", "engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stats = newStatsWindow(config.MetricsWindow)

	if err := e.buildComponents(logger); err != nil {
		return nil, err
	}
	if e.tracer == nil {
		e.tracer = tracing.Noop()
	}

	if e.cache != nil && !e.cacheable() {
		e.logger.Warn("result cache unused while security or compliance stages are enabled")
	}

	e.logger.Info("validation engine created",
		"strict_mode", config.StrictMode,
		"batch_size", config.BatchSize,
		"cache", e.cacheable(),
		"schemas", len(e.registry.Types()))
	return e, nil
}

func (e *Engine) buildComponents(logger *slog.Logger) error {
	var err error
	if e.registry == nil {
		if e.registry, err = schema.NewRegistry(nil, logger); err != nil {
			return fmt.Errorf("failed to create schema registry: %w", err)
		}
	}
	if e.ring == nil {
		if e.ring, err = audit.NewRing(nil, logger); err != nil {
			return fmt.Errorf("failed to create audit log: %w", err)
		}
	}
	if e.sanitizer == nil {
		if e.sanitizer, err = sanitizer.New(nil, logger); err != nil {
			return fmt.Errorf("failed to create sanitizer: %w", err)
		}
	}
	if e.security == nil {
		e.security, err = security.NewValidator(nil, logger,
			security.WithAudit(e.ring),
			security.WithSchemas(e.registry),
			security.WithClock(e.now))
		if err != nil {
			return fmt.Errorf("failed to create security validator: %w", err)
		}
	}
	if e.compliance == nil {
		e.compliance, err = compliance.NewValidator(nil, logger,
			compliance.WithAudit(e.ring),
			compliance.WithSchemas(e.registry),
			compliance.WithClock(e.now))
		if err != nil {
			return fmt.Errorf("failed to create compliance validator: %w", err)
		}
	}
	if e.quality == nil {
		e.quality, err = quality.NewValidator(nil, logger,
			quality.WithSchemas(e.registry),
			quality.WithClock(e.now))
		if err != nil {
			return fmt.Errorf("failed to create quality validator: %w", err)
		}
	}
	return nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return *e.config
}

// Registry returns the schema registry.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// Audit returns the audit log.
func (e *Engine) Audit() *audit.Ring {
	return e.ring
}

// Cache returns the result cache, or nil when caching is disabled.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// AddListener registers a lifecycle listener.
func (e *Engine) AddListener(l Listener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, l)
}
