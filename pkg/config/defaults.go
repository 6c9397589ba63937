package config

import (
	"time"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/cache"
	"recordguard-hq/recordguard/pkg/compliance"
	"recordguard-hq/recordguard/pkg/engine"
	"recordguard-hq/recordguard/pkg/quality"
	"recordguard-hq/recordguard/pkg/sanitizer"
	"recordguard-hq/recordguard/pkg/secrets"
	"recordguard-hq/recordguard/pkg/security"
	"recordguard-hq/recordguard/pkg/server/auth"
	"recordguard-hq/recordguard/pkg/server/ratelimit"
	"recordguard-hq/recordguard/pkg/server/tlsconfig"
	"recordguard-hq/recordguard/pkg/telemetry/logging"
	"recordguard-hq/recordguard/pkg/telemetry/metrics"
	"recordguard-hq/recordguard/pkg/telemetry/tracing"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultMaxBodyBytes    = 10 * 1024 * 1024 // 10MB
	DefaultMaxBatchItems   = 1000

	// Schema defaults
	DefaultSchemaDebounce = 200 * time.Millisecond

	// Audit defaults
	DefaultAuditCapacity = audit.DefaultCapacity

	// Metrics defaults
	DefaultMetricsPath = "/metrics"
)

// Default returns the full default configuration. Every section starts
// from its component's DefaultConfig, so booleans that default to true
// survive YAML documents that omit them.
func Default() *Config {
	return &Config{
		Engine: *engine.DefaultConfig(),
		Schema: SchemaConfig{
			SeedCore: true,
			Debounce: DefaultSchemaDebounce,
		},
		Sanitizer:  *sanitizer.DefaultConfig(),
		Security:   *security.DefaultConfig(),
		Compliance: *compliance.DefaultConfig(),
		Quality:    *quality.DefaultConfig(),
		Cache: CacheConfig{
			Config: *cache.DefaultConfig(),
		},
		Audit: AuditConfig{
			Capacity: DefaultAuditCapacity,
			SQLite: SQLiteConfig{
				SQLiteConfig: *audit.DefaultSQLiteConfig(),
			},
			Breaker: *audit.DefaultBreakerConfig(),
			Retention: RetentionConfig{
				Enabled:      true,
				PrunerConfig: *audit.DefaultPrunerConfig(),
			},
		},
		Telemetry: TelemetryConfig{
			Logging: logging.DefaultConfig(),
			Metrics: MetricsConfig{
				Config: metrics.DefaultConfig(),
				Path:   DefaultMetricsPath,
			},
			Tracing: tracing.DefaultConfig(),
		},
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			RequestTimeout:  DefaultRequestTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			MaxBatchItems:   DefaultMaxBatchItems,
			Auth: auth.Config{
				Sources: auth.DefaultSources(),
			},
			TLS: tlsconfig.Config{
				MinVersion:     "1.3",
				ReloadInterval: tlsconfig.DefaultReloadInterval,
			},
			RateLimit: ratelimit.Config{
				IdleTTL: ratelimit.DefaultIdleTTL,
			},
		},
		Secrets: SecretsConfig{
			EnvPrefix: secrets.DefaultEnvPrefix,
		},
	}
}

// ApplyDefaults fills zero-valued fields that have a non-zero default.
// Booleans are left alone: a false in the file is an explicit choice.
func ApplyDefaults(cfg *Config) {
	def := Default()

	// Engine defaults
	if cfg.Engine.BatchSize == 0 {
		cfg.Engine.BatchSize = def.Engine.BatchSize
	}
	if cfg.Engine.MetricsWindow == 0 {
		cfg.Engine.MetricsWindow = def.Engine.MetricsWindow
	}

	// Schema defaults
	if cfg.Schema.Debounce == 0 {
		cfg.Schema.Debounce = DefaultSchemaDebounce
	}

	// Sanitizer defaults
	if cfg.Sanitizer.MaxDepth == 0 {
		cfg.Sanitizer.MaxDepth = def.Sanitizer.MaxDepth
	}
	if cfg.Sanitizer.AllowedTags == nil {
		cfg.Sanitizer.AllowedTags = def.Sanitizer.AllowedTags
	}

	applySecurityDefaults(cfg, def)
	applyComplianceDefaults(cfg, def)
	applyQualityDefaults(cfg, def)

	// Cache defaults
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}

	applyAuditDefaults(cfg, def)
	applyTelemetryDefaults(cfg, def)
	applyServerDefaults(cfg)
}

func applySecurityDefaults(cfg, def *Config) {
	if cfg.Security.MaxPayloadBytes == 0 {
		cfg.Security.MaxPayloadBytes = def.Security.MaxPayloadBytes
	}
	if cfg.Security.SpecialCharRatio == 0 {
		cfg.Security.SpecialCharRatio = def.Security.SpecialCharRatio
	}
	if cfg.Security.SpecialCharMinLength == 0 {
		cfg.Security.SpecialCharMinLength = def.Security.SpecialCharMinLength
	}
	if cfg.Security.SuspiciousThreshold == 0 {
		cfg.Security.SuspiciousThreshold = def.Security.SuspiciousThreshold
	}
	if cfg.Security.SuspiciousWindow == 0 {
		cfg.Security.SuspiciousWindow = def.Security.SuspiciousWindow
	}
	if cfg.Security.AdminPermissions == nil {
		cfg.Security.AdminPermissions = def.Security.AdminPermissions
	}
}

func applyComplianceDefaults(cfg, def *Config) {
	if cfg.Compliance.ApproachingRatio == 0 {
		cfg.Compliance.ApproachingRatio = def.Compliance.ApproachingRatio
	}
	if cfg.Compliance.SevereRatio == 0 {
		cfg.Compliance.SevereRatio = def.Compliance.SevereRatio
	}
	if cfg.Compliance.Retention == nil {
		cfg.Compliance.Retention = def.Compliance.Retention
	}
	if len(cfg.Compliance.TimestampFields) == 0 {
		cfg.Compliance.TimestampFields = def.Compliance.TimestampFields
	}
}

func applyQualityDefaults(cfg, def *Config) {
	q := &cfg.Quality
	if q.ErrorRatio == 0 {
		q.ErrorRatio = def.Quality.ErrorRatio
	}
	if q.StaleCreatedDays == 0 {
		q.StaleCreatedDays = def.Quality.StaleCreatedDays
	}
	if q.StaleModifiedDays == 0 {
		q.StaleModifiedDays = def.Quality.StaleModifiedDays
	}
	if q.SampleSize == 0 {
		q.SampleSize = def.Quality.SampleSize
	}
}

func applyAuditDefaults(cfg, def *Config) {
	a := &cfg.Audit
	if a.Capacity == 0 {
		a.Capacity = DefaultAuditCapacity
	}
	if a.SQLite.Path == "" {
		a.SQLite.Path = def.Audit.SQLite.Path
	}
	if a.SQLite.BusyTimeout == 0 {
		a.SQLite.BusyTimeout = def.Audit.SQLite.BusyTimeout
	}
	if a.Breaker.Name == "" {
		a.Breaker.Name = def.Audit.Breaker.Name
	}
	if a.Breaker.FailureThreshold == 0 {
		a.Breaker.FailureThreshold = def.Audit.Breaker.FailureThreshold
	}
	if a.Breaker.Timeout == 0 {
		a.Breaker.Timeout = def.Audit.Breaker.Timeout
	}
	if a.Breaker.MaxRequests == 0 {
		a.Breaker.MaxRequests = def.Audit.Breaker.MaxRequests
	}
	if a.Retention.Schedule == "" {
		a.Retention.Schedule = def.Audit.Retention.Schedule
	}
}

func applyTelemetryDefaults(cfg, def *Config) {
	t := &cfg.Telemetry
	if t.Logging.Level == "" {
		t.Logging.Level = def.Telemetry.Logging.Level
	}
	if t.Logging.Format == "" {
		t.Logging.Format = def.Telemetry.Logging.Format
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = def.Telemetry.Metrics.Namespace
	}
	if t.Metrics.DurationBuckets == nil {
		t.Metrics.DurationBuckets = def.Telemetry.Metrics.DurationBuckets
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = def.Telemetry.Tracing.ServiceName
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = def.Telemetry.Tracing.Endpoint
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = def.Telemetry.Tracing.Timeout
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = def.Telemetry.Tracing.Sampler
	}
}

func applyServerDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.MaxBatchItems == 0 {
		s.MaxBatchItems = DefaultMaxBatchItems
	}
	if len(s.Auth.Sources) == 0 {
		s.Auth.Sources = auth.DefaultSources()
	}
	if s.TLS.MinVersion == "" {
		s.TLS.MinVersion = "1.3"
	}
	if s.TLS.ReloadInterval == 0 {
		s.TLS.ReloadInterval = tlsconfig.DefaultReloadInterval
	}
	if s.RateLimit.IdleTTL == 0 {
		s.RateLimit.IdleTTL = ratelimit.DefaultIdleTTL
	}
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = secrets.DefaultEnvPrefix
	}
}
