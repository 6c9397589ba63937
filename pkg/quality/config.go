package quality

import (
	"errors"
	"fmt"
)

// Common quality errors.
var (
	// ErrInvalidConfig indicates an invalid quality configuration.
	ErrInvalidConfig = errors.New("invalid quality configuration")

	// ErrInvalidProfile indicates a malformed quality profile.
	ErrInvalidProfile = errors.New("invalid quality profile")

	// ErrProfileExists is returned by AddProfile for a registered type.
	ErrProfileExists = errors.New("quality profile already exists")

	// ErrUnknownAlgorithm indicates an unsupported similarity algorithm.
	ErrUnknownAlgorithm = errors.New("unknown similarity algorithm")
)

// Config configures the quality Validator.
type Config struct {
	// ErrorRatio is the share of a threshold below which a score is an
	// error rather than a warning.
	ErrorRatio float64 `yaml:"error_ratio"`

	// StaleCreatedDays and StaleCreatedPenalty lower timeliness for records
	// created longer ago.
	StaleCreatedDays    int     `yaml:"stale_created_days"`
	StaleCreatedPenalty float64 `yaml:"stale_created_penalty"`

	// StaleModifiedDays and StaleModifiedPenalty lower timeliness for
	// records not modified for longer.
	StaleModifiedDays    int     `yaml:"stale_modified_days"`
	StaleModifiedPenalty float64 `yaml:"stale_modified_penalty"`

	// ConsistencyPenalty is subtracted per formatting inconsistency.
	ConsistencyPenalty float64 `yaml:"consistency_penalty"`

	// SampleSize bounds the values inspected per field when profiling.
	SampleSize int `yaml:"sample_size"`

	// TopValues is the number of most common values reported per field.
	TopValues int `yaml:"top_values"`
}

// DefaultConfig returns the default quality configuration.
func DefaultConfig() *Config {
	return &Config{
		ErrorRatio:           0.7,
		StaleCreatedDays:     365,
		StaleCreatedPenalty:  20,
		StaleModifiedDays:    90,
		StaleModifiedPenalty: 15,
		ConsistencyPenalty:   10,
		SampleSize:           1000,
		TopValues:            5,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ErrorRatio <= 0 || c.ErrorRatio > 1 {
		return fmt.Errorf("%w: error_ratio must be in (0, 1]", ErrInvalidConfig)
	}
	if c.StaleCreatedDays <= 0 || c.StaleModifiedDays <= 0 {
		return fmt.Errorf("%w: stale day thresholds must be positive", ErrInvalidConfig)
	}
	if c.StaleCreatedPenalty < 0 || c.StaleModifiedPenalty < 0 || c.ConsistencyPenalty < 0 {
		return fmt.Errorf("%w: penalties cannot be negative", ErrInvalidConfig)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("%w: sample_size must be positive", ErrInvalidConfig)
	}
	if c.TopValues < 0 {
		return fmt.Errorf("%w: top_values cannot be negative", ErrInvalidConfig)
	}
	return nil
}
