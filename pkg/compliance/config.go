package compliance

import (
	"errors"
	"fmt"
	"slices"
)

// Common compliance errors.
var (
	// ErrInvalidConfig indicates an invalid compliance configuration.
	ErrInvalidConfig = errors.New("invalid compliance configuration")

	// ErrInvalidFramework indicates a malformed framework definition.
	ErrInvalidFramework = errors.New("invalid compliance framework")

	// ErrFrameworkExists is returned by AddFramework for a registered name.
	ErrFrameworkExists = errors.New("compliance framework already exists")

	// ErrConsentNotFound is returned when no consent is recorded for a
	// data subject.
	ErrConsentNotFound = errors.New("consent not found")
)

// Config configures the compliance Validator.
type Config struct {
	// RequireContext rejects calls without a compliance context. Global
	// frameworks are evaluated either way.
	RequireContext bool `yaml:"require_context"`

	// Frameworks lists the built-in frameworks to enable. Empty enables
	// all of them.
	Frameworks []string `yaml:"frameworks"`

	// ApproachingRatio is the share of the retention period after which a
	// RETENTION_PERIOD_APPROACHING warning is raised.
	ApproachingRatio float64 `yaml:"approaching_ratio"`

	// SevereRatio is the share of the retention period beyond which an
	// exceeded retention is critical rather than high.
	SevereRatio float64 `yaml:"severe_ratio"`

	// Retention maps data categories to retention periods in days. It is
	// used when the call carries no retention policy, and reported per
	// category.
	Retention map[string]int `yaml:"retention"`

	// TimestampFields are the record fields searched, in order, for the
	// record creation time.
	TimestampFields []string `yaml:"timestamp_fields"`
}

// DefaultConfig returns the default compliance configuration.
func DefaultConfig() *Config {
	return &Config{
		ApproachingRatio: 0.9,
		SevereRatio:      1.5,
		Retention: map[string]int{
			"customer":  1095,
			"financial": 2555,
			"health":    2190,
			"marketing": 730,
		},
		TimestampFields: []string{"createdAt", "created_at", "createdDate", "createdOn"},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ApproachingRatio <= 0 || c.ApproachingRatio >= 1 {
		return fmt.Errorf("%w: approaching_ratio must be in (0, 1)", ErrInvalidConfig)
	}
	if c.SevereRatio <= 1 {
		return fmt.Errorf("%w: severe_ratio must be greater than 1", ErrInvalidConfig)
	}
	for category, days := range c.Retention {
		if days <= 0 {
			return fmt.Errorf("%w: retention for %q must be positive", ErrInvalidConfig, category)
		}
	}
	for _, name := range c.Frameworks {
		if !slices.ContainsFunc(BuiltinFrameworks(), func(f Framework) bool { return f.Name == name }) {
			return fmt.Errorf("%w: unknown framework %q", ErrInvalidConfig, name)
		}
	}
	return nil
}
