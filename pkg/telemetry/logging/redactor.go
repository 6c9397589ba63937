package logging

import (
	"fmt"
	"regexp"
	"strings"
)

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement replaces every match. It may reference groups as $1.
	Replacement string `yaml:"replacement"`
}

func (p RedactPattern) validate() error {
	if p.Name == "" {
		return fmt.Errorf("redact pattern name is required")
	}
	if _, err := regexp.Compile(p.Pattern); err != nil {
		return fmt.Errorf("redact pattern %s: %w", p.Name, err)
	}
	return nil
}

// Common PII pattern names.
const (
	PatternEmail       = "email"
	PatternSSN         = "ssn"
	PatternCreditCard  = "credit_card"
	PatternIPv4        = "ipv4"
	PatternPhone       = "phone"
	PatternPassword    = "password"
	PatternBearerToken = "bearer_token"
)

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor masks personal data in log values. Patterns apply in order, card
// numbers before SSNs and phone numbers so longer digit runs are matched
// first.
type Redactor struct {
	patterns []redactPattern
}

var defaultPatterns = []RedactPattern{
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternPassword, `(?i)(password|passwd|pwd)[:=]\s*[^\s]+`, "$1: ***"},
	{PatternEmail, `[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`, "***@$1"},
	{PatternCreditCard, `\b(?:\d[ -]?){12,15}\d\b`, "****-****-****-****"},
	{PatternSSN, `\b\d{3}-\d{2}-\d{4}\b`, "***-**-****"},
	{PatternPhone, `(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, "***-***-****"},
	{PatternIPv4, `\b(\d{1,3})\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`, "$1.*.*.*"},
}

// NewRedactor creates a Redactor with the default patterns followed by
// custom.
func NewRedactor(custom []RedactPattern) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range append(defaultPatterns[:len(defaultPatterns):len(defaultPatterns)], custom...) {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %s: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r, nil
}

// RedactString masks every pattern match in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"authorization", "encryption_key",
	"ssn", "social_security",
	"credit_card", "creditcard", "card_number", "cardnumber", "cvv",
	"private_key", "privatekey",
}

// IsSensitiveKey reports whether an attribute key names secret data whose
// value is masked entirely.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// MaskValue masks a sensitive value, keeping a short prefix of longer
// strings for debugging.
func MaskValue(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) <= 8:
		return "***"
	}
	return value[:2] + "***"
}
