package security

import (
	"context"
	"fmt"
	"strings"

	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/validation"
)

// ResourceRestrictor is an extension point for resource-level access
// decisions, such as record ownership or tenancy, that need data outside
// the record. It runs after permission checks pass.
type ResourceRestrictor interface {
	// Restrict returns a non-empty reason to deny access.
	Restrict(ctx context.Context, record validation.Record, vctx *validation.Context) (string, error)
}

// RestrictorFunc adapts a function to ResourceRestrictor.
type RestrictorFunc func(ctx context.Context, record validation.Record, vctx *validation.Context) (string, error)

// Restrict calls f.
func (f RestrictorFunc) Restrict(ctx context.Context, record validation.Record, vctx *validation.Context) (string, error) {
	return f(ctx, record, vctx)
}

// NoRestriction never restricts. It is the default restrictor.
var NoRestriction ResourceRestrictor = RestrictorFunc(func(context.Context, validation.Record, *validation.Context) (string, error) {
	return "", nil
})

// AccessDecision is the outcome of an access check.
type AccessDecision struct {
	Granted  bool
	Required []string
	Missing  []string
	Reason   string
}

// RequiredPermissions returns the permissions an operation on entityType
// requires: "<lower type>.<op>" and "<op>".
func RequiredPermissions(op validation.Operation, entityType string) []string {
	return []string{strings.ToLower(entityType) + "." + string(op), string(op)}
}

// ValidateAccess decides whether the actor may perform the operation.
func (v *Validator) ValidateAccess(ctx context.Context, record validation.Record, vctx *validation.Context) AccessDecision {
	return v.checkAccess(ctx, record, vctx, v.policy(vctx.EntityType))
}

func (v *Validator) checkAccess(ctx context.Context, record validation.Record, vctx *validation.Context, p *Policy) AccessDecision {
	d := AccessDecision{Required: RequiredPermissions(vctx.Operation, vctx.EntityType)}

	sc := vctx.Security
	if sc == nil {
		d.Granted = p != nil && p.DefaultAllow
		if !d.Granted {
			d.Reason = "no security context"
		}
		return d
	}

	if !sc.HasPermission("*") {
		for _, perm := range d.Required {
			if !sc.HasPermission(perm) {
				d.Missing = append(d.Missing, perm)
			}
		}
	}
	if len(d.Missing) > 0 {
		d.Reason = "missing permissions: " + strings.Join(d.Missing, ", ")
		return d
	}

	if p != nil && len(p.AuthorizationRules) > 0 {
		env := &rules.Env{Record: record, Context: vctx, Now: v.now().UTC()}
		for _, o := range rules.Evaluate(ctx, p.AuthorizationRules, env) {
			switch {
			case o.Err != nil:
				d.Reason = fmt.Sprintf("authorization rule %s could not be evaluated: %v", o.Rule.ID, o.Err)
				return d
			case !o.Passed && o.Rule.Mandatory:
				d.Reason = "authorization rule failed: " + o.Rule.FailureMessage()
				return d
			}
		}
	}

	reason, err := v.restrictor.Restrict(ctx, record, vctx)
	if err != nil {
		d.Reason = "resource restriction check failed: " + err.Error()
		return d
	}
	if reason != "" {
		d.Reason = reason
		return d
	}

	d.Granted = true
	return d
}

// fieldPermitted reports whether the actor may touch a protected field.
func fieldPermitted(sc *validation.SecurityContext, field string) bool {
	return sc.HasPermission("pii.access") ||
		sc.HasPermission("field."+field) ||
		sc.HasPermission("field.*")
}
