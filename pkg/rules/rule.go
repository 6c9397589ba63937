package rules

import (
	"slices"
	"time"

	"recordguard-hq/recordguard/pkg/validation"
)

// Kind identifies which stage owns a rule.
type Kind string

const (
	KindBusiness   Kind = "business"
	KindSecurity   Kind = "security"
	KindCompliance Kind = "compliance"
	KindQuality    Kind = "quality"
)

// Default priorities.
const (
	PriorityHigh    = 100
	PriorityMedium  = 50
	PriorityLow     = 10
	PriorityDefault = PriorityMedium
)

// Env is the read-only input to a condition.
type Env struct {
	Record  validation.Record
	Context *validation.Context
	Now     time.Time
}

// NewEnv builds an Env stamped with the current time.
func NewEnv(record validation.Record, vctx *validation.Context) *Env {
	return &Env{Record: record, Context: vctx, Now: time.Now().UTC()}
}

// Rule is an immutable check attached to a schema, policy or framework.
type Rule struct {
	// ID uniquely identifies the rule within its owner.
	ID string `json:"id"`

	// Name is a short human-readable name, also used as priority tiebreaker.
	Name string `json:"name"`

	// Kind is the owning stage.
	Kind Kind `json:"kind"`

	// Field optionally names the record field the rule is about.
	Field string `json:"field,omitempty"`

	// Condition must hold for the record to pass.
	Condition Condition `json:"-"`

	// Severity applies to the error or warning produced on failure.
	Severity validation.Severity `json:"severity"`

	// Priority orders evaluation, higher first.
	Priority int `json:"priority"`

	// Mandatory rules produce errors on failure; optional rules warnings.
	Mandatory bool `json:"mandatory"`

	// Enabled rules are evaluated.
	Enabled bool `json:"enabled"`

	// Message is reported when the rule fails.
	Message string `json:"message,omitempty"`

	// Recommendation is attached to warnings produced by optional rules.
	Recommendation string `json:"recommendation,omitempty"`

	// Operations limits the rule to these operations. Empty means all.
	Operations []validation.Operation `json:"operations,omitempty"`
}

// New creates an enabled, mandatory business rule with medium severity and
// default priority.
func New(id, name string, cond Condition) Rule {
	return Rule{
		ID:        id,
		Name:      name,
		Kind:      KindBusiness,
		Condition: cond,
		Severity:  validation.SeverityMedium,
		Priority:  PriorityDefault,
		Mandatory: true,
		Enabled:   true,
	}
}

// WithKind returns a copy of r owned by kind.
func (r Rule) WithKind(kind Kind) Rule {
	r.Kind = kind
	return r
}

// WithField returns a copy of r about field.
func (r Rule) WithField(field string) Rule {
	r.Field = field
	return r
}

// WithSeverity returns a copy of r with severity s.
func (r Rule) WithSeverity(s validation.Severity) Rule {
	r.Severity = s
	return r
}

// WithPriority returns a copy of r with priority p.
func (r Rule) WithPriority(p int) Rule {
	r.Priority = p
	return r
}

// Optional returns a copy of r that produces warnings instead of errors.
func (r Rule) Optional() Rule {
	r.Mandatory = false
	return r
}

// Disabled returns a disabled copy of r.
func (r Rule) Disabled() Rule {
	r.Enabled = false
	return r
}

// WithMessage returns a copy of r with a failure message.
func (r Rule) WithMessage(msg string) Rule {
	r.Message = msg
	return r
}

// WithRecommendation returns a copy of r with a remediation hint.
func (r Rule) WithRecommendation(rec string) Rule {
	r.Recommendation = rec
	return r
}

// ForOperations returns a copy of r scoped to ops.
func (r Rule) ForOperations(ops ...validation.Operation) Rule {
	r.Operations = slices.Clone(ops)
	return r
}

// AppliesTo reports whether r should run for op.
func (r *Rule) AppliesTo(op validation.Operation) bool {
	if !r.Enabled {
		return false
	}
	if len(r.Operations) == 0 || op == "" {
		return true
	}
	return slices.Contains(r.Operations, op)
}

// FailureMessage returns the configured message or a default one.
func (r *Rule) FailureMessage() string {
	if r.Message != "" {
		return r.Message
	}
	return "rule " + r.Name + " failed"
}

// Clone returns a deep copy of rules.
func Clone(rs []Rule) []Rule {
	out := make([]Rule, len(rs))
	for i, r := range rs {
		r.Operations = slices.Clone(r.Operations)
		out[i] = r
	}
	return out
}
