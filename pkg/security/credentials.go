package security

import (
	"net/netip"

	"recordguard-hq/recordguard/pkg/validation"
)

// Strength grades a credential score.
type Strength string

const (
	StrengthWeak      Strength = "weak"
	StrengthMedium    Strength = "medium"
	StrengthStrong    Strength = "strong"
	StrengthExcellent Strength = "excellent"
)

// CredentialReport is the outcome of a credential check.
type CredentialReport struct {
	Score    int
	Strength Strength
	Valid    bool
	Issues   []string
}

// ValidateCredentials scores the security context. Roles, permissions, a
// session id and a syntactically valid IP address add 25 points each. The
// credentials are invalid below 50 points or without a user id.
func (v *Validator) ValidateCredentials(sc *validation.SecurityContext) CredentialReport {
	return scoreCredentials(sc)
}

func scoreCredentials(sc *validation.SecurityContext) CredentialReport {
	if sc == nil {
		return CredentialReport{Strength: StrengthWeak, Issues: []string{"missing security context"}}
	}

	var r CredentialReport
	if sc.UserID == "" {
		r.Issues = append(r.Issues, "missing user id")
	}
	if len(sc.Roles) > 0 {
		r.Score += 25
	} else {
		r.Issues = append(r.Issues, "no roles assigned")
	}
	if len(sc.Permissions) > 0 {
		r.Score += 25
	} else {
		r.Issues = append(r.Issues, "no permissions granted")
	}
	if sc.SessionID != "" {
		r.Score += 25
	} else {
		r.Issues = append(r.Issues, "no session id")
	}
	if _, err := netip.ParseAddr(sc.IPAddress); err == nil {
		r.Score += 25
	} else {
		r.Issues = append(r.Issues, "missing or invalid ip address")
	}

	switch {
	case r.Score >= 100:
		r.Strength = StrengthExcellent
	case r.Score >= 75:
		r.Strength = StrengthStrong
	case r.Score >= 50:
		r.Strength = StrengthMedium
	default:
		r.Strength = StrengthWeak
	}
	r.Valid = r.Score >= 50 && sc.UserID != ""
	return r
}
