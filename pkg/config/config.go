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

// Config is the root configuration structure for RecordGuard. Component
// sections reuse the configuration types of the packages they configure.
type Config struct {
	// Engine controls the pipeline: stage toggles, strict mode, batch size
	// and the advisory time budget.
	Engine engine.Config `yaml:"engine"`

	// Schema controls where entity schemas come from.
	Schema SchemaConfig `yaml:"schema"`

	// Sanitizer controls input cleansing.
	Sanitizer sanitizer.Config `yaml:"sanitizer"`

	// Security controls the security validator.
	Security security.Config `yaml:"security"`

	// Compliance controls the compliance validator.
	Compliance compliance.Config `yaml:"compliance"`

	// Quality controls quality scoring.
	Quality quality.Config `yaml:"quality"`

	// Cache controls the optional result cache.
	Cache CacheConfig `yaml:"cache"`

	// Audit controls the in-memory audit log and its durable sink.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server contains the HTTP API configuration used by "recordguard serve".
	Server ServerConfig `yaml:"server"`

	// Secrets controls how ${secret:name} references in this file are
	// resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures secret providers. The file provider, when Dir
// is set, is consulted before the environment.
type SecretsConfig struct {
	// EnvPrefix is prepended to secret names looked up in the environment.
	// Default: "RECORDGUARD_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret, mode 0600 or 0400.
	Dir string `yaml:"dir"`

	// Watch drops cached values when files in Dir change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Cache caches resolved values. Disabled unless both TTL and MaxSize
	// are positive.
	Cache secrets.CacheConfig `yaml:"cache"`
}

// SchemaConfig configures the schema registry.
type SchemaConfig struct {
	// SeedCore registers the built-in Account and Contact schemas.
	// Default: true
	SeedCore bool `yaml:"seed_core"`

	// Dir is a directory of YAML schema files. Empty disables file loading.
	Dir string `yaml:"dir"`

	// Watch reloads the registry when files in Dir change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period after a change before reloading.
	// Default: 200ms
	Debounce time.Duration `yaml:"debounce"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Enabled turns result caching on. Results are keyed by the full
	// validation context and record content.
	// Default: false
	Enabled bool `yaml:"enabled"`

	cache.Config `yaml:",inline"`
}

// AuditConfig configures audit retention and persistence.
type AuditConfig struct {
	// Capacity is the number of entries kept in memory.
	// Default: 10000
	Capacity int `yaml:"capacity"`

	// SQLite configures the durable sink.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Breaker protects the validation path from a failing sink.
	Breaker audit.BreakerConfig `yaml:"breaker"`

	// Retention configures scheduled pruning of the in-memory log and the
	// durable sink.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig configures the SQLite audit sink.
type SQLiteConfig struct {
	// Enabled writes every audit entry to SQLite.
	// Default: false
	Enabled bool `yaml:"enabled"`

	audit.SQLiteConfig `yaml:",inline"`
}

// RetentionConfig configures audit pruning.
type RetentionConfig struct {
	// Enabled schedules pruning.
	// Default: true
	Enabled bool `yaml:"enabled"`

	audit.PrunerConfig `yaml:",inline"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Tracing tracing.Config `yaml:"tracing"`
}

// MetricsConfig configures prometheus metrics.
type MetricsConfig struct {
	metrics.Config `yaml:",inline"`

	// Path is the HTTP path metrics are served on.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the handling of a single request.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes limits request bodies.
	// Default: 10MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// MaxBatchItems limits the records of one batch request.
	// Default: 1000
	MaxBatchItems int `yaml:"max_batch_items"`

	// Auth configures API key authentication.
	Auth auth.Config `yaml:"auth"`

	// TLS configures HTTPS and client certificates.
	TLS tlsconfig.Config `yaml:"tls"`

	// RateLimit configures per-caller request limits.
	RateLimit ratelimit.Config `yaml:"rate_limit"`
}
