package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrInvalidConfig is matched by every ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = appendErr(errs, "engine", cfg.Engine.Validate())
	errs = append(errs, validateSchema(&cfg.Schema)...)
	errs = appendErr(errs, "sanitizer", cfg.Sanitizer.Validate())
	errs = appendErr(errs, "security", cfg.Security.Validate())
	errs = appendErr(errs, "compliance", cfg.Compliance.Validate())
	errs = appendErr(errs, "quality", cfg.Quality.Validate())
	if cfg.Cache.Enabled {
		errs = appendErr(errs, "cache", cfg.Cache.Config.Validate())
	}
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// appendErr records a component validation error under its section.
func appendErr(errs []FieldError, section string, err error) []FieldError {
	if err == nil {
		return errs
	}
	return append(errs, FieldError{Field: section, Message: err.Error()})
}

func validateSchema(cfg *SchemaConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "schema.watch",
			Message: "watching requires schema.dir",
		})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "schema.debounce",
			Message: "debounce cannot be negative",
		})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Capacity <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.capacity",
			Message: fmt.Sprintf("capacity must be positive, got %d", cfg.Capacity),
		})
	}
	if cfg.SQLite.Enabled && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.path",
			Message: "path is required when the sqlite sink is enabled",
		})
	}
	if cfg.Breaker.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.breaker.timeout",
			Message: "timeout cannot be negative",
		})
	}
	if cfg.Retention.Enabled {
		errs = appendErr(errs, "audit.retention", cfg.Retention.PrunerConfig.Validate())
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	errs = appendErr(errs, "telemetry.logging", cfg.Logging.Validate())
	errs = appendErr(errs, "telemetry.metrics", cfg.Metrics.Config.Validate())
	errs = appendErr(errs, "telemetry.tracing", cfg.Tracing.Validate())

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: fmt.Sprintf("path must start with '/', got %q", cfg.Metrics.Path),
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}
	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address: %v", err),
		})
	}

	for field, d := range map[string]int64{
		"server.read_timeout":     int64(cfg.ReadTimeout),
		"server.write_timeout":    int64(cfg.WriteTimeout),
		"server.idle_timeout":     int64(cfg.IdleTimeout),
		"server.shutdown_timeout": int64(cfg.ShutdownTimeout),
		"server.request_timeout":  int64(cfg.RequestTimeout),
	} {
		if d <= 0 {
			errs = append(errs, FieldError{Field: field, Message: "timeout must be positive"})
		}
	}

	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be positive",
		})
	}
	if cfg.MaxBatchItems <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_batch_items",
			Message: "max batch items must be positive",
		})
	}

	if cfg.Auth.Enabled {
		if len(cfg.Auth.Keys) == 0 {
			errs = append(errs, FieldError{
				Field:   "server.auth.keys",
				Message: "at least one key is required when auth is enabled",
			})
		}
		for i, k := range cfg.Auth.Keys {
			if k.Key == "" || k.UserID == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("server.auth.keys[%d]", i),
					Message: "key and user_id are required",
				})
			}
		}
		for i, src := range cfg.Auth.Sources {
			if (src.Type != "header" && src.Type != "query") || src.Name == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("server.auth.sources[%d]", i),
					Message: fmt.Sprintf("source needs type header or query and a name, got %q/%q", src.Type, src.Name),
				})
			}
		}
	}
	errs = appendErr(errs, "server.tls", cfg.TLS.Check())
	errs = appendErr(errs, "server.rate_limit", cfg.RateLimit.Check())
	return errs
}

func validateSecrets(cfg *SecretsConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "secrets.watch",
			Message: "watching requires secrets.dir",
		})
	}
	if cfg.Cache.TTL < 0 || cfg.Cache.MaxSize < 0 {
		errs = append(errs, FieldError{
			Field:   "secrets.cache",
			Message: "ttl and max_size cannot be negative",
		})
	}
	return errs
}
