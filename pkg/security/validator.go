package security

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/validation"
)

// SchemaSource resolves entity schemas. *schema.Registry implements it.
type SchemaSource interface {
	Get(entityType, version string) (*schema.EntitySchema, bool)
}

// Option configures a Validator.
type Option func(*Validator)

// WithAudit records audit entries in ring instead of a private ring.
func WithAudit(ring *audit.Ring) Option {
	return func(v *Validator) { v.audit = ring }
}

// WithResourceRestrictor installs a resource-level access hook.
func WithResourceRestrictor(r ResourceRestrictor) Option {
	return func(v *Validator) { v.restrictor = r }
}

// WithSchemas enables schema security rules and PII designations.
func WithSchemas(s SchemaSource) Option {
	return func(v *Validator) { v.schemas = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator is the security stage. It is safe for concurrent use.
type Validator struct {
	mu       sync.RWMutex
	policies map[string]*Policy

	config     *Config
	cipher     *FieldCipher
	restrictor ResourceRestrictor
	schemas    SchemaSource
	audit      *audit.Ring
	logger     *slog.Logger
	now        func() time.Time
}

// NewValidator creates a security Validator. A nil config uses
// DefaultConfig.
func NewValidator(config *Config, logger *slog.Logger, opts ...Option) (*Validator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := &Validator{
		policies:   make(map[string]*Policy),
		config:     config,
		restrictor: NoRestriction,
		logger:     logger.With("component", "security"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	if config.EncryptionKey != "" {
		c, err := NewFieldCipher(config.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		v.cipher = c
	}
	if v.audit == nil {
		ring, err := audit.NewRing(nil, logger)
		if err != nil {
			return nil, err
		}
		v.audit = ring
	}
	return v, nil
}

// AddPolicy registers the policy for a new entity type.
func (v *Validator) AddPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.policies[p.EntityType]; ok {
		return fmt.Errorf("%w: %s", ErrPolicyExists, p.EntityType)
	}
	v.policies[p.EntityType] = p.clone()
	v.logger.Info("security policy added", "entity_type", p.EntityType)
	return nil
}

// UpdatePolicy replaces the policy of a registered entity type.
func (v *Validator) UpdatePolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.policies[p.EntityType]; !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, p.EntityType)
	}
	v.policies[p.EntityType] = p.clone()
	v.logger.Info("security policy updated", "entity_type", p.EntityType)
	return nil
}

// Policy returns a copy of the policy for entityType.
func (v *Validator) Policy(entityType string) (Policy, bool) {
	p := v.policy(entityType)
	if p == nil {
		return Policy{}, false
	}
	return *p.clone(), true
}

// policy returns the registered policy. Policies are replaced, never
// mutated, so the pointer may be read without the lock.
func (v *Validator) policy(entityType string) *Policy {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.policies[entityType]
}

func (v *Validator) schema(entityType string) *schema.EntitySchema {
	if v.schemas == nil {
		return nil
	}
	s, _ := v.schemas.Get(entityType, "")
	return s
}

// AuditLog returns the retained security audit entries, oldest first.
func (v *Validator) AuditLog() []audit.Entry {
	return v.audit.Query(&audit.Filter{Category: audit.CategorySecurity})
}

// Validate runs the security pipeline: credentials, access control, threat
// analysis, field-level restrictions, encryption and schema security
// rules. Every call is audited. When fields are encrypted, the result's
// SanitizedData holds the updated copy of record.
//
// An unexpected internal failure is returned as a
// *validation.SecurityViolationError.
func (v *Validator) Validate(ctx context.Context, record validation.Record, vctx *validation.Context) (result *validation.Result, err error) {
	if vctx == nil {
		return nil, fmt.Errorf("%w: nil context", validation.ErrInvalidContext)
	}
	defer func() {
		if rec := recover(); rec != nil {
			v.logger.Error("security validation panicked", "entity_type", vctx.EntityType, "panic", rec)
			result = nil
			err = &validation.SecurityViolationError{
				Kind:       "internal",
				EntityType: vctx.EntityType,
				EntityID:   vctx.EntityID,
				Actor:      vctx.Actor(),
				Operation:  vctx.Operation,
				Cause:      validation.Recovered(rec),
			}
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := v.now().UTC()
	result = validation.NewResult(vctx.EntityType)
	p := v.policy(vctx.EntityType)
	s := v.schema(vctx.EntityType)
	ruleRuns := 0

	sc := vctx.Security
	var cred CredentialReport
	if sc == nil {
		if v.config.RequireContext && (p == nil || !p.DefaultAllow) {
			result.AddError(validation.Error{
				Code:     validation.CodeMissingSecurityContext,
				Message:  "security context is required",
				Severity: validation.SeverityHigh,
				Category: validation.CategorySecurity,
			})
		}
	} else {
		cred = scoreCredentials(sc)
		switch {
		case !cred.Valid:
			result.AddError(validation.Error{
				Field:    "security",
				Code:     validation.CodeInvalidCredentials,
				Message:  "invalid credentials: " + strings.Join(cred.Issues, ", "),
				Severity: validation.SeverityHigh,
				Category: validation.CategorySecurity,
				Context:  map[string]any{"score": cred.Score, "strength": string(cred.Strength)},
			})
		case cred.Strength == StrengthMedium:
			result.AddWarning(validation.Warning{
				Field:          "security",
				Code:           validation.CodeWeakCredentials,
				Message:        fmt.Sprintf("credential strength is %s (%d)", cred.Strength, cred.Score),
				Recommendation: "establish a session and provide the client address",
			})
		}

		if p != nil {
			ruleRuns += len(p.AuthorizationRules)
		}
		if d := v.checkAccess(ctx, record, vctx, p); !d.Granted {
			result.AddError(validation.Error{
				Code:     validation.CodeAccessDenied,
				Message:  "access denied: " + d.Reason,
				Severity: validation.SeverityHigh,
				Category: validation.CategorySecurity,
				Context:  map[string]any{"required": d.Required, "missing": d.Missing},
			})
		}
	}

	designated := designatedFields(p, s)
	threats := v.analyze(record, vctx, designated)
	for _, f := range threats.Findings {
		if f.Severity.AboveMedium() {
			result.AddError(validation.Error{
				Field:    f.Field,
				Code:     validation.CodeSecurityThreat,
				Message:  fmt.Sprintf("%s: %s", f.Kind, f.Description),
				Severity: f.Severity,
				Category: validation.CategorySecurity,
				Context:  map[string]any{"threat": string(f.Kind), "confidence": f.Confidence},
			})
			continue
		}
		result.AddWarning(validation.Warning{
			Field:          f.Field,
			Code:           validation.CodeSecurityThreat,
			Message:        fmt.Sprintf("%s: %s", f.Kind, f.Description),
			Recommendation: strings.Join(threats.Recommendations, "; "),
		})
	}

	if p != nil {
		for _, field := range p.ProtectedFields() {
			if !rules.IsPresent(record[field]) || fieldPermitted(sc, field) {
				continue
			}
			result.AddError(validation.Error{
				Field:    field,
				Code:     validation.CodeFieldAccessDenied,
				Message:  fmt.Sprintf("field %s requires pii.access or field.%s permission", field, field),
				Severity: validation.SeverityHigh,
				Category: validation.CategorySecurity,
			})
		}
		if encrypted := v.enforceEncryption(record, vctx, p, result); encrypted != nil {
			result.SanitizedData = encrypted
		}
	}

	if s != nil && len(s.SecurityRules) > 0 {
		env := &rules.Env{Record: record, Context: vctx, Now: now}
		outcomes := rules.Evaluate(ctx, s.SecurityRules, env)
		rules.Apply(result, outcomes, validation.CategorySecurity, validation.CodeSecurityRuleFailed)
		ruleRuns += len(outcomes)
	}
	result.Metadata.Performance = &validation.Performance{RuleExecutions: ruleRuns}

	v.record(ctx, result, vctx, now, threats.Risk, cred)
	return result, nil
}

// record appends the audit entry for a call and raises the
// suspicious-activity warning when the actor's recent denials reach the
// threshold.
func (v *Validator) record(ctx context.Context, result *validation.Result, vctx *validation.Context, now time.Time, risk validation.Severity, cred CredentialReport) {
	outcome := audit.OutcomeAllowed
	if !result.Valid() {
		outcome = audit.OutcomeDenied
	}
	codes := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		if !slices.Contains(codes, e.Code) {
			codes = append(codes, e.Code)
		}
	}

	actor := vctx.Actor()
	entry := v.audit.Append(ctx, audit.Entry{
		Timestamp:  now,
		Category:   audit.CategorySecurity,
		Actor:      actor,
		Action:     "validate." + string(vctx.Operation),
		EntityType: vctx.EntityType,
		EntityID:   vctx.EntityID,
		Outcome:    outcome,
		Details: map[string]any{
			"error_codes":         codes,
			"risk":                string(risk),
			"credential_strength": string(cred.Strength),
		},
	})
	result.Metadata.AuditEntries = append(result.Metadata.AuditEntries, entry.ID)

	if outcome == audit.OutcomeDenied {
		v.logger.Warn("security validation denied",
			"entity_type", vctx.EntityType,
			"actor", actor,
			"codes", codes,
		)
	}

	if actor == "" {
		return
	}
	denied := v.audit.CountDenied(audit.CategorySecurity, actor, now.Add(-v.config.SuspiciousWindow))
	if denied >= v.config.SuspiciousThreshold {
		result.AddWarning(validation.Warning{
			Field:          "security",
			Code:           validation.CodeSuspiciousActivity,
			Message:        fmt.Sprintf("%d denied validations by %s within %s", denied, actor, v.config.SuspiciousWindow),
			Recommendation: "review recent activity for this user",
		})
		v.logger.Warn("suspicious activity detected", "actor", actor, "denied", denied)
	}
}

// enforceEncryption encrypts plaintext values of encrypted fields on write
// operations. It returns the updated copy of record, or nil when nothing
// was encrypted.
func (v *Validator) enforceEncryption(record validation.Record, vctx *validation.Context, p *Policy, result *validation.Result) validation.Record {
	var out validation.Record
	for _, field := range p.EncryptedFields {
		value, ok := record[field]
		if !ok || !rules.IsPresent(value) || IsEncrypted(value) {
			continue
		}
		if !vctx.Operation.Writes() {
			result.AddError(validation.Error{
				Field:    field,
				Code:     validation.CodeEncryptionRequired,
				Message:  fmt.Sprintf("field %s must be encrypted but holds plaintext", field),
				Severity: validation.SeverityHigh,
				Category: validation.CategorySecurity,
			})
			continue
		}
		if v.cipher == nil {
			result.AddError(validation.Error{
				Field:    field,
				Code:     validation.CodeEncryptionUnavailable,
				Message:  fmt.Sprintf("field %s must be encrypted: %v", field, ErrEncryptionUnavailable),
				Severity: validation.SeverityHigh,
				Category: validation.CategorySecurity,
			})
			continue
		}

		ciphertext, err := v.encryptValue(value, vctx.EntityType+"."+field)
		if err != nil {
			result.AddError(validation.Error{
				Field:    field,
				Code:     validation.CodeEncryptionUnavailable,
				Message:  err.Error(),
				Severity: validation.SeverityHigh,
				Category: validation.CategorySecurity,
			})
			continue
		}
		if out == nil {
			out = maps.Clone(record)
		}
		out[field] = ciphertext
		result.AddWarning(validation.Warning{
			Field:   field,
			Code:    validation.CodeFieldEncrypted,
			Message: fmt.Sprintf("field %s was encrypted", field),
		})
	}
	return out
}

func (v *Validator) encryptValue(value any, additional string) (string, error) {
	plaintext, ok := value.(string)
	if !ok {
		b, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode value: %w", err)
		}
		plaintext = string(b)
	}
	return v.cipher.Encrypt(plaintext, additional)
}

// Decrypt opens an encrypted field value written by this validator.
func (v *Validator) Decrypt(entityType, field, value string) (string, error) {
	if v.cipher == nil {
		return "", ErrEncryptionUnavailable
	}
	return v.cipher.Decrypt(value, entityType+"."+field)
}

func designatedFields(p *Policy, s *schema.EntitySchema) []string {
	var out []string
	if p != nil {
		out = append(out, p.PIIFields...)
		out = append(out, p.EncryptedFields...)
	}
	if s != nil {
		out = append(out, s.PIIFields()...)
	}
	return out
}
