package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/cache"
	"recordguard-hq/recordguard/pkg/compliance"
	"recordguard-hq/recordguard/pkg/config"
	"recordguard-hq/recordguard/pkg/engine"
	"recordguard-hq/recordguard/pkg/quality"
	"recordguard-hq/recordguard/pkg/sanitizer"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/secrets"
	"recordguard-hq/recordguard/pkg/security"
	"recordguard-hq/recordguard/pkg/telemetry/health"
	"recordguard-hq/recordguard/pkg/telemetry/logging"
	"recordguard-hq/recordguard/pkg/telemetry/metrics"
	"recordguard-hq/recordguard/pkg/telemetry/tracing"
)

// App is a fully wired RecordGuard instance: the engine and the
// components that outlive single validations.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Engine    *engine.Engine
	Registry  *schema.Registry
	Audit     *audit.Ring
	Consents  *compliance.ConsentRegistry
	Collector *metrics.Collector
	Tracer    *tracing.Tracer
	Health    *health.Checker
	Secrets   *secrets.Manager

	cache   *cache.Cache
	sqlite  *audit.SQLiteSink
	breaker *audit.BreakerSink
	pruner  *audit.Pruner
	watcher *schema.Watcher

	closeOnce sync.Once
	closeErr  error
}

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	promReg    *prometheus.Registry
	exporter   sdktrace.SpanExporter
	version    string
	engineOpts []engine.Option
}

// WithLogger replaces the logger built from telemetry.logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPrometheusRegistry registers metrics in reg instead of a new registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.promReg = reg }
}

// WithSpanExporter exports spans to exporter instead of OTLP.
func WithSpanExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exporter }
}

// WithVersion sets the service version reported by traces.
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// WithEngineOptions passes extra options to engine.New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// New builds an App from cfg. Background work does not begin until Start.
// On error every resource opened so far is released.
func New(cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if a.Logger = o.logger; a.Logger == nil {
		if a.Logger, err = logging.New(cfg.Telemetry.Logging); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	logger := a.Logger

	if err := a.resolveSecrets(logger); err != nil {
		return nil, err
	}

	a.Collector = metrics.NewCollector(cfg.Telemetry.Metrics.Config, o.promReg)

	var tracerOpts []tracing.Option
	if o.version != "" {
		tracerOpts = append(tracerOpts, tracing.WithVersion(o.version))
	}
	if o.exporter != nil {
		tracerOpts = append(tracerOpts, tracing.WithExporter(o.exporter))
	}
	if a.Tracer, err = tracing.New(&cfg.Telemetry.Tracing, tracerOpts...); err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	a.Registry, err = schema.NewRegistry(&schema.RegistryConfig{
		SeedCore: cfg.Schema.SeedCore,
		Dir:      cfg.Schema.Dir,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema registry: %w", err)
	}

	if err := a.buildAudit(logger); err != nil {
		return nil, err
	}

	san, err := sanitizer.New(&cfg.Sanitizer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sanitizer: %w", err)
	}
	sec, err := security.NewValidator(&cfg.Security, logger,
		security.WithAudit(a.Audit),
		security.WithSchemas(a.Registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create security validator: %w", err)
	}
	a.Consents = compliance.NewConsentRegistry()
	comp, err := compliance.NewValidator(&cfg.Compliance, logger,
		compliance.WithAudit(a.Audit),
		compliance.WithConsents(a.Consents),
		compliance.WithSchemas(a.Registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create compliance validator: %w", err)
	}
	qual, err := quality.NewValidator(&cfg.Quality, logger, quality.WithSchemas(a.Registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create quality validator: %w", err)
	}

	engineOpts := []engine.Option{
		engine.WithRegistry(a.Registry),
		engine.WithAudit(a.Audit),
		engine.WithSanitizer(san),
		engine.WithSecurity(sec),
		engine.WithCompliance(comp),
		engine.WithQuality(qual),
		engine.WithMetrics(a.Collector),
		engine.WithTracer(a.Tracer),
	}
	if cfg.Cache.Enabled {
		if a.cache, err = cache.New(&cfg.Cache.Config, logger); err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		engineOpts = append(engineOpts, engine.WithCache(a.cache))
	}
	if a.Engine, err = engine.New(&cfg.Engine, logger, append(engineOpts, o.engineOpts...)...); err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if cfg.Audit.Retention.Enabled {
		stores := []audit.Store{a.Audit}
		if a.sqlite != nil {
			stores = append(stores, a.sqlite)
		}
		if a.pruner, err = audit.NewPruner(&cfg.Audit.Retention.PrunerConfig, logger, stores...); err != nil {
			return nil, fmt.Errorf("failed to create audit pruner: %w", err)
		}
	}

	a.Health = health.New(0)
	a.registerChecks()
	return a, nil
}

// resolveSecrets builds the secrets manager and replaces ${secret:name}
// references in cfg in place.
func (a *App) resolveSecrets(logger *slog.Logger) error {
	cfg := a.Config

	var providers []secrets.Provider
	if cfg.Secrets.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Secrets.Dir, cfg.Secrets.Watch, logger)
		if err != nil {
			return fmt.Errorf("failed to create secrets file provider: %w", err)
		}
		providers = append(providers, fp)
	}
	providers = append(providers, secrets.NewEnvProvider(cfg.Secrets.EnvPrefix))
	a.Secrets = secrets.NewManager(providers, logger, secrets.WithCache(cfg.Secrets.Cache))

	targets := []*string{&cfg.Security.EncryptionKey}
	for i := range cfg.Server.Auth.Keys {
		targets = append(targets, &cfg.Server.Auth.Keys[i].Key)
	}
	if err := a.Secrets.ResolveAll(context.Background(), targets...); err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}
	return nil
}

// buildAudit creates the audit ring and, when enabled, its SQLite sink
// behind a circuit breaker. Every entry is counted in metrics.
func (a *App) buildAudit(logger *slog.Logger) error {
	cfg := &a.Config.Audit

	var durable audit.Sink
	if cfg.SQLite.Enabled {
		var err error
		if a.sqlite, err = audit.NewSQLiteSink(&cfg.SQLite.SQLiteConfig, logger); err != nil {
			return fmt.Errorf("failed to open audit database: %w", err)
		}
		a.breaker = audit.NewBreakerSink(a.sqlite, &cfg.Breaker, logger)
		durable = a.breaker
	}

	collector := a.Collector
	ring, err := audit.NewRing(&audit.RingConfig{
		Capacity: cfg.Capacity,
		OnDrop:   collector.RecordAuditDrop,
		Sink: audit.SinkFunc(func(ctx context.Context, e audit.Entry) error {
			collector.RecordAuditEntry(string(e.Category))
			if durable == nil {
				return nil
			}
			if err := durable.Write(ctx, e); err != nil {
				collector.RecordAuditSinkError()
				return err
			}
			return nil
		}),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	a.Audit = ring
	return nil
}

func (a *App) registerChecks() {
	a.Health.Register("schema_registry", func(context.Context) error {
		if a.Config.Schema.SeedCore && !a.Registry.Has("Account", "") {
			return errors.New("core schemas are not registered")
		}
		return nil
	})
	if a.breaker != nil {
		a.Health.Register("audit_sink", func(context.Context) error {
			if a.breaker.State() == gobreaker.StateOpen {
				return errors.New("audit sink circuit breaker is open")
			}
			return nil
		})
	}
}

// Start begins background work: cache sweeps, audit pruning and schema
// directory watching. It stops when ctx is cancelled or Close is called.
func (a *App) Start(ctx context.Context) error {
	if a.cache != nil {
		if err := a.cache.Start(ctx); err != nil {
			return err
		}
	}
	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			return err
		}
	}
	if a.Config.Schema.Watch {
		wcfg := schema.DefaultWatcherConfig(a.Config.Schema.Dir)
		wcfg.Debounce = a.Config.Schema.Debounce
		w, err := schema.NewWatcher(wcfg, a.Registry, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create schema watcher: %w", err)
		}
		a.watcher = w
		go func() {
			if err := w.Watch(ctx); err != nil {
				a.Logger.Error("schema watcher stopped", "error", err)
			}
		}()
	}
	a.Logger.Info("recordguard started",
		"cache", a.cache != nil,
		"audit_sqlite", a.sqlite != nil,
		"audit_pruning", a.pruner != nil,
		"schema_watch", a.watcher != nil)
	return nil
}

// Close stops background work and releases resources. Spans still
// buffered are flushed within ctx. Only the first call has an effect.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.closeOnce.Do(func() { a.closeErr = a.close(ctx) })
	return a.closeErr
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("schema watcher: %w", err))
		}
	}
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.cache != nil {
		a.cache.Stop()
	}
	if a.Tracer != nil {
		if err := a.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer: %w", err))
		}
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audit database: %w", err))
		}
	}
	if a.Secrets != nil {
		if err := a.Secrets.Close(); err != nil {
			errs = append(errs, fmt.Errorf("secrets: %w", err))
		}
	}
	return errors.Join(errs...)
}
