package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RECORDGUARD_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over Default(), remaining zero values are defaulted,
// and the result is validated. Environment variables are not consulted;
// use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults. Unknown fields are
// rejected so typos surface instead of being ignored. An empty document
// yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RECORDGUARD_SECTION_FIELD (e.g., RECORDGUARD_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file over the defaults
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
//
// An empty path skips step 1.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// envOverride binds one environment variable to a configuration field.
type envOverride struct {
	name  string
	apply func(val string) error
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Malformed values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	overrides := []envOverride{
		// Engine overrides
		boolVar("ENGINE_STRICT_MODE", &cfg.Engine.StrictMode),
		durationVar("ENGINE_MAX_VALIDATION_TIME", &cfg.Engine.MaxValidationTime),
		intVar("ENGINE_BATCH_SIZE", &cfg.Engine.BatchSize),
		boolVar("ENGINE_AUDIT_LIFECYCLE", &cfg.Engine.AuditLifecycle),
		boolVar("ENGINE_SANITIZE", &cfg.Engine.Sanitize),
		boolVar("ENGINE_BUSINESS_RULES", &cfg.Engine.BusinessRules),
		boolVar("ENGINE_SECURITY", &cfg.Engine.Security),
		boolVar("ENGINE_COMPLIANCE", &cfg.Engine.Compliance),
		boolVar("ENGINE_QUALITY", &cfg.Engine.Quality),

		// Schema overrides
		stringVar("SCHEMA_DIR", &cfg.Schema.Dir),
		boolVar("SCHEMA_WATCH", &cfg.Schema.Watch),

		// Security overrides
		boolVar("SECURITY_REQUIRE_CONTEXT", &cfg.Security.RequireContext),
		stringVar("SECURITY_ENCRYPTION_KEY", &cfg.Security.EncryptionKey),
		intVar("SECURITY_MAX_PAYLOAD_BYTES", &cfg.Security.MaxPayloadBytes),

		// Compliance overrides
		boolVar("COMPLIANCE_REQUIRE_CONTEXT", &cfg.Compliance.RequireContext),
		listVar("COMPLIANCE_FRAMEWORKS", &cfg.Compliance.Frameworks),

		// Cache overrides
		boolVar("CACHE_ENABLED", &cfg.Cache.Enabled),
		durationVar("CACHE_TTL", &cfg.Cache.TTL),
		intVar("CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries),

		// Audit overrides
		intVar("AUDIT_CAPACITY", &cfg.Audit.Capacity),
		boolVar("AUDIT_SQLITE_ENABLED", &cfg.Audit.SQLite.Enabled),
		stringVar("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path),
		intVar("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.RetentionDays),

		// Telemetry overrides
		stringVar("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level),
		stringVar("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format),
		boolVar("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled),
		boolVar("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled),
		stringVar("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint),

		// Server overrides
		stringVar("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress),
		durationVar("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout),
		durationVar("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout),
		durationVar("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout),
		boolVar("SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled),
		boolVar("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled),
		stringVar("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile),
		stringVar("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile),
		boolVar("SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled),

		// Secrets overrides
		stringVar("SECRETS_DIR", &cfg.Secrets.Dir),
		stringVar("SECRETS_ENV_PREFIX", &cfg.Secrets.EnvPrefix),
	}

	var errs []error
	for _, o := range overrides {
		val, ok := os.LookupEnv(EnvPrefix + o.name)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(val); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err))
		}
	}
	return errors.Join(errs...)
}

func stringVar(name string, dst *string) envOverride {
	return envOverride{name: name, apply: func(val string) error {
		*dst = val
		return nil
	}}
}

func boolVar(name string, dst *bool) envOverride {
	return envOverride{name: name, apply: func(val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}}
}

func intVar(name string, dst *int) envOverride {
	return envOverride{name: name, apply: func(val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}}
}

func durationVar(name string, dst *time.Duration) envOverride {
	return envOverride{name: name, apply: func(val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}}
}

func listVar(name string, dst *[]string) envOverride {
	return envOverride{name: name, apply: func(val string) error {
		var out []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
		return nil
	}}
}
