package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates an invalid engine configuration.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// Stage names a pipeline stage.
type Stage string

const (
	StageSchema     Stage = "schema"
	StageSanitize   Stage = "sanitize"
	StageBusiness   Stage = "business_rules"
	StageSecurity   Stage = "security"
	StageCompliance Stage = "compliance"
	StageQuality    Stage = "quality"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageSchema, StageSanitize, StageBusiness, StageSecurity, StageCompliance, StageQuality}

// Config contains configuration for the validation engine.
type Config struct {
	// StrictMode makes Validate return a *validation.ValidationFailedError
	// alongside every invalid result.
	// Default: false.
	StrictMode bool `yaml:"strict_mode"`

	// MaxValidationTime is the advisory time budget of one validation.
	// Exceeding it adds a PERFORMANCE_WARNING; it never cancels work.
	// Zero disables the check.
	// Default: 5s.
	MaxValidationTime time.Duration `yaml:"max_validation_time"`

	// BatchSize is the number of records validated concurrently by
	// ValidateBatch. Chunks run one after another.
	// Default: 10.
	BatchSize int `yaml:"batch_size"`

	// MetricsWindow is the number of recent validations kept per entity
	// type for PerformanceStatistics.
	// Default: 100.
	MetricsWindow int `yaml:"metrics_window"`

	// AuditLifecycle records started, completed and failed events in the
	// audit log.
	// Default: false.
	AuditLifecycle bool `yaml:"audit_lifecycle"`

	// Stage toggles. The schema stage always runs.
	Sanitize      bool `yaml:"sanitize"`
	BusinessRules bool `yaml:"business_rules"`
	Security      bool `yaml:"security"`
	Compliance    bool `yaml:"compliance"`
	Quality       bool `yaml:"quality"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxValidationTime: 5 * time.Second,
		BatchSize:         10,
		MetricsWindow:     100,
		Sanitize:          true,
		BusinessRules:     true,
		Security:          true,
		Compliance:        true,
		Quality:           true,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.MaxValidationTime < 0 {
		return fmt.Errorf("%w: max_validation_time cannot be negative", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MetricsWindow <= 0 {
		return fmt.Errorf("%w: metrics_window must be positive, got %d", ErrInvalidConfig, c.MetricsWindow)
	}
	return nil
}

// enabled reports whether stage runs.
func (c *Config) enabled(stage Stage) bool {
	switch stage {
	case StageSanitize:
		return c.Sanitize
	case StageBusiness:
		return c.BusinessRules
	case StageSecurity:
		return c.Security
	case StageCompliance:
		return c.Compliance
	case StageQuality:
		return c.Quality
	}
	return true
}
