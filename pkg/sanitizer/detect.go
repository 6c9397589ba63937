package sanitizer

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"recordguard-hq/recordguard/pkg/validation"
)

// ThreatType classifies an injection hazard.
type ThreatType string

const (
	ThreatSQLInjection    ThreatType = "sql_injection"
	ThreatXSS             ThreatType = "xss"
	ThreatScriptInjection ThreatType = "script_injection"
)

// Code returns the finding code for the threat type.
func (t ThreatType) Code() string {
	switch t {
	case ThreatSQLInjection:
		return validation.CodeSQLInjection
	case ThreatXSS:
		return validation.CodeXSS
	default:
		return validation.CodeScriptInjection
	}
}

// Recommendation returns remediation advice for the threat type.
func (t ThreatType) Recommendation() string {
	switch t {
	case ThreatSQLInjection:
		return "use parameterized queries; pattern stripping is best-effort only"
	case ThreatXSS:
		return "encode output for its rendering context and apply a content security policy"
	default:
		return "never pass record content to dynamic code evaluation"
	}
}

// Threat is a detected injection hazard in one field.
type Threat struct {
	Field      string
	Type       ThreatType
	Match      string
	Severity   validation.Severity
	Confidence float64
}

// PIIType classifies personal data.
type PIIType string

const (
	PIIEmail      PIIType = "email"
	PIIPhone      PIIType = "phone"
	PIICreditCard PIIType = "credit_card"
	PIISSN        PIIType = "ssn"
	PIIGeneric    PIIType = "generic"
)

// PIIMatch is detected personal data in one field. Masked never holds the
// raw value.
type PIIMatch struct {
	Field      string
	Type       PIIType
	Confidence float64
	Masked     string
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	ipPattern    = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)
	ibanPattern  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)
)

// DetectThreats walks record without modifying it and reports every field
// that matches an injection pattern. Each field reports at most one threat
// per type. Entity-escaped content is inert and is not reported.
func (s *Sanitizer) DetectThreats(record validation.Record) []Threat {
	return DetectThreats(record)
}

// DetectThreats reports injection hazards in record. See
// Sanitizer.DetectThreats.
func DetectThreats(record validation.Record) []Threat {
	var out []Threat
	visitStrings(record, "", func(path, v string) {
		if m, ok := matchesAny(v, sqlDetect); ok {
			out = append(out, Threat{Field: path, Type: ThreatSQLInjection, Match: truncate(m), Severity: validation.SeverityHigh, Confidence: 0.8})
		}
		if m, ok := matchesAny(v, xssDetect); ok {
			out = append(out, Threat{Field: path, Type: ThreatXSS, Match: truncate(m), Severity: validation.SeverityHigh, Confidence: 0.9})
		}
		if m, ok := matchesAny(v, scriptDetect); ok {
			out = append(out, Threat{Field: path, Type: ThreatScriptInjection, Match: truncate(m), Severity: validation.SeverityMedium, Confidence: 0.7})
		}
	})
	return out
}

// DetectPII walks record without modifying it and reports personal data.
// A field reports each PII class at most once.
func (s *Sanitizer) DetectPII(record validation.Record) []PIIMatch {
	var out []PIIMatch
	visitStrings(record, "", func(path, v string) {
		out = append(out, ClassifyPII(path, v)...)
	})
	return out
}

// ClassifyPII reports the personal data classes present in one string.
func ClassifyPII(field, v string) []PIIMatch {
	var out []PIIMatch
	rest := v

	if m := emailPattern.FindString(rest); m != "" {
		out = append(out, PIIMatch{Field: field, Type: PIIEmail, Confidence: 0.95, Masked: MaskEmail(m)})
		rest = strings.ReplaceAll(rest, m, " ")
	}
	if m := ssnPattern.FindString(rest); m != "" {
		out = append(out, PIIMatch{Field: field, Type: PIISSN, Confidence: 0.9, Masked: MaskSSN(m)})
		rest = strings.ReplaceAll(rest, m, " ")
	}
	for _, m := range cardPattern.FindAllString(rest, -1) {
		if luhn(digitsOf(m)) {
			out = append(out, PIIMatch{Field: field, Type: PIICreditCard, Confidence: 0.95, Masked: MaskCard(m)})
			rest = strings.ReplaceAll(rest, m, " ")
			break
		}
	}
	if m := phonePattern.FindString(rest); m != "" {
		out = append(out, PIIMatch{Field: field, Type: PIIPhone, Confidence: phoneConfidence(field), Masked: MaskPhone(m)})
		rest = strings.ReplaceAll(rest, m, " ")
	}
	if m := ipPattern.FindString(rest); m != "" {
		out = append(out, PIIMatch{Field: field, Type: PIIGeneric, Confidence: 0.6, Masked: MaskGeneric(m)})
	} else if m := ibanPattern.FindString(rest); m != "" {
		out = append(out, PIIMatch{Field: field, Type: PIIGeneric, Confidence: 0.7, Masked: MaskGeneric(m)})
	}
	return out
}

// A phone-shaped number in a field named like a phone is almost certainly
// one; elsewhere it may be any ten-digit identifier.
func phoneConfidence(field string) float64 {
	f := strings.ToLower(field)
	if strings.Contains(f, "phone") || strings.Contains(f, "mobile") || strings.Contains(f, "fax") {
		return 0.9
	}
	return 0.6
}

func visitStrings(v any, path string, fn func(path, value string)) {
	switch x := v.(type) {
	case string:
		fn(path, x)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			visitStrings(x[k], joinPath(path, k), fn)
		}
	case []any:
		for i, child := range x {
			visitStrings(child, indexPath(path, i), fn)
		}
	case []string:
		for i, child := range x {
			fn(indexPath(path, i), child)
		}
	case []map[string]any:
		for i, child := range x {
			visitStrings(child, indexPath(path, i), fn)
		}
	}
}

func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s...", s[:max])
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhn reports whether digits pass the Luhn checksum.
func luhn(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
