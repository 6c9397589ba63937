package security

import (
	"fmt"
	"slices"

	"recordguard-hq/recordguard/pkg/rules"
)

// Policy is the security posture of one entity type.
type Policy struct {
	EntityType string

	// PIIFields hold personal data. Reading or writing them requires
	// pii.access or a field permission.
	PIIFields []string

	// RestrictedFields require a field permission.
	RestrictedFields []string

	// EncryptedFields must be stored encrypted.
	EncryptedFields []string

	// AuthorizationRules narrow access beyond permissions. Every enabled
	// rule's condition must hold for access to be granted.
	AuthorizationRules []rules.Rule

	// DefaultAllow permits calls that carry no security context.
	DefaultAllow bool
}

// Validate checks the policy.
func (p *Policy) Validate() error {
	if p.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidPolicy)
	}
	for _, r := range p.AuthorizationRules {
		if r.ID == "" || r.Condition == nil {
			return fmt.Errorf("%w: authorization rule %q needs an id and a condition", ErrInvalidPolicy, r.ID)
		}
	}
	return nil
}

// ProtectedFields returns PII and restricted fields without duplicates.
func (p *Policy) ProtectedFields() []string {
	if p == nil {
		return nil
	}
	out := slices.Clone(p.PIIFields)
	for _, f := range p.RestrictedFields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

func (p Policy) clone() *Policy {
	p.PIIFields = slices.Clone(p.PIIFields)
	p.RestrictedFields = slices.Clone(p.RestrictedFields)
	p.EncryptedFields = slices.Clone(p.EncryptedFields)
	p.AuthorizationRules = rules.Clone(p.AuthorizationRules)
	return &p
}
