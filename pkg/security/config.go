package security

import (
	"errors"
	"fmt"
	"time"
)

// Common security errors.
var (
	// ErrInvalidConfig indicates an invalid security configuration.
	ErrInvalidConfig = errors.New("invalid security configuration")

	// ErrInvalidPolicy indicates a malformed security policy.
	ErrInvalidPolicy = errors.New("invalid security policy")

	// ErrPolicyExists is returned by AddPolicy for an already registered type.
	ErrPolicyExists = errors.New("security policy already exists")

	// ErrPolicyNotFound is returned by UpdatePolicy for an unknown type.
	ErrPolicyNotFound = errors.New("security policy not found")

	// ErrEncryptionUnavailable indicates no encryption key is configured.
	ErrEncryptionUnavailable = errors.New("field encryption unavailable")
)

// Config configures the security Validator.
type Config struct {
	// RequireContext rejects calls without a security context unless the
	// entity's policy allows by default.
	RequireContext bool `yaml:"require_context"`

	// EncryptionKey is the passphrase field encryption keys are derived
	// from. Empty disables encryption, so plaintext values in encrypted
	// fields are rejected.
	EncryptionKey string `yaml:"encryption_key"`

	// MaxPayloadBytes flags records whose JSON encoding exceeds this size.
	MaxPayloadBytes int `yaml:"max_payload_bytes"`

	// SpecialCharRatio flags strings whose share of special characters
	// exceeds this ratio.
	SpecialCharRatio float64 `yaml:"special_char_ratio"`

	// SpecialCharMinLength is the shortest string checked for the ratio.
	SpecialCharMinLength int `yaml:"special_char_min_length"`

	// SuspiciousThreshold is the number of denied validations by one actor
	// within SuspiciousWindow that raises a suspicious-activity warning.
	SuspiciousThreshold int `yaml:"suspicious_threshold"`

	// SuspiciousWindow is the trailing window for SuspiciousThreshold.
	SuspiciousWindow time.Duration `yaml:"suspicious_window"`

	// AdminPermissions grant writes to role and permission fields.
	AdminPermissions []string `yaml:"admin_permissions"`
}

// DefaultConfig returns the default security configuration.
func DefaultConfig() *Config {
	return &Config{
		RequireContext:       true,
		MaxPayloadBytes:      1 << 20,
		SpecialCharRatio:     0.3,
		SpecialCharMinLength: 20,
		SuspiciousThreshold:  5,
		SuspiciousWindow:     5 * time.Minute,
		AdminPermissions:     []string{"admin", "*"},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("%w: max_payload_bytes must be positive", ErrInvalidConfig)
	}
	if c.SpecialCharRatio <= 0 || c.SpecialCharRatio > 1 {
		return fmt.Errorf("%w: special_char_ratio must be in (0, 1]", ErrInvalidConfig)
	}
	if c.SuspiciousThreshold <= 0 {
		return fmt.Errorf("%w: suspicious_threshold must be positive", ErrInvalidConfig)
	}
	if c.SuspiciousWindow <= 0 {
		return fmt.Errorf("%w: suspicious_window must be positive", ErrInvalidConfig)
	}
	return nil
}
