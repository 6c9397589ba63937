package sanitizer

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidConfig indicates an invalid sanitizer configuration.
var ErrInvalidConfig = errors.New("invalid sanitizer configuration")

// CustomRule is a caller-supplied, field-scoped regex replacement applied
// after the built-in steps.
type CustomRule struct {
	// EntityType limits the rule to one entity type. Empty means all.
	EntityType string `yaml:"entity_type"`

	// Field is matched against the leaf field name or the full dotted path.
	Field string `yaml:"field"`

	// Pattern is the regular expression to replace.
	Pattern string `yaml:"pattern"`

	// Replacement is the replacement template.
	Replacement string `yaml:"replacement"`

	re *regexp.Regexp
}

// Config configures a Sanitizer.
type Config struct {
	// StripSQL enables SQL token stripping.
	StripSQL bool `yaml:"strip_sql"`

	// StripXSS enables markup neutralization and entity escaping.
	StripXSS bool `yaml:"strip_xss"`

	// StripScript enables script-injection token removal.
	StripScript bool `yaml:"strip_script"`

	// MarkupFields names fields that may carry allow-listed markup. These
	// fields are rendered through the markup allow-list instead of being
	// entity escaped.
	MarkupFields []string `yaml:"markup_fields"`

	// AllowedTags is the markup allow-list.
	AllowedTags []string `yaml:"allowed_tags"`

	// Custom rules run last, in order.
	Custom []CustomRule `yaml:"custom"`

	// MaxDepth bounds record nesting.
	MaxDepth int `yaml:"max_depth"`
}

// DefaultConfig returns a configuration with every built-in step enabled.
func DefaultConfig() *Config {
	return &Config{
		StripSQL:    true,
		StripXSS:    true,
		StripScript: true,
		AllowedTags: []string{"b", "i", "em", "strong", "u", "p", "br", "ul", "ol", "li", "a", "code", "pre", "blockquote"},
		MaxDepth:    32,
	}
}

// WithCustom returns a copy of c with an additional custom rule.
func (c *Config) WithCustom(r CustomRule) *Config {
	cp := *c
	cp.Custom = append(append([]CustomRule(nil), c.Custom...), r)
	return &cp
}

// WithMarkupFields returns a copy of c allowing markup in fields.
func (c *Config) WithMarkupFields(fields ...string) *Config {
	cp := *c
	cp.MarkupFields = append(append([]string(nil), c.MarkupFields...), fields...)
	return &cp
}

// Validate checks the configuration and compiles custom patterns.
func (c *Config) Validate() error {
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w: max_depth must be positive", ErrInvalidConfig)
	}
	for i := range c.Custom {
		r := &c.Custom[i]
		if r.Field == "" {
			return fmt.Errorf("%w: custom rule %d has no field", ErrInvalidConfig, i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("%w: custom rule %d: %v", ErrInvalidConfig, i, err)
		}
		r.re = re
	}
	return nil
}
