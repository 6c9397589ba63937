package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
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

// WithConsents uses registry for consent lookups.
func WithConsents(registry *ConsentRegistry) Option {
	return func(v *Validator) { v.consents = registry }
}

// WithSchemas enables schema compliance rules.
func WithSchemas(s SchemaSource) Option {
	return func(v *Validator) { v.schemas = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator is the compliance stage. It is safe for concurrent use.
type Validator struct {
	mu         sync.RWMutex
	frameworks map[string]*Framework
	order      []string

	config   *Config
	consents *ConsentRegistry
	schemas  SchemaSource
	audit    *audit.Ring
	logger   *slog.Logger
	now      func() time.Time
}

// NewValidator creates a compliance Validator with the built-in frameworks
// enabled by config. A nil config uses DefaultConfig.
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
		frameworks: make(map[string]*Framework),
		config:     config,
		logger:     logger.With("component", "compliance"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.consents == nil {
		v.consents = NewConsentRegistry()
	}
	if v.audit == nil {
		ring, err := audit.NewRing(nil, logger)
		if err != nil {
			return nil, err
		}
		v.audit = ring
	}

	for _, f := range BuiltinFrameworks() {
		if len(config.Frameworks) > 0 && !slices.Contains(config.Frameworks, f.Name) {
			continue
		}
		if err := v.AddFramework(f); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// AddFramework registers a framework.
func (v *Validator) AddFramework(f Framework) error {
	if err := f.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.frameworks[f.Name]; ok {
		return fmt.Errorf("%w: %s", ErrFrameworkExists, f.Name)
	}
	v.frameworks[f.Name] = f.clone()
	v.order = append(v.order, f.Name)
	v.logger.Debug("compliance framework added", "framework", f.Name)
	return nil
}

// Frameworks returns the registered framework names in registration order.
func (v *Validator) Frameworks() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.order)
}

// Applicable returns the names of the frameworks governing a call with cc,
// which may be nil, in registration order.
func (v *Validator) Applicable(cc *validation.ComplianceContext) []string {
	var names []string
	for _, f := range v.applicable(cc) {
		names = append(names, f.Name)
	}
	return names
}

func (v *Validator) applicable(cc *validation.ComplianceContext) []*Framework {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []*Framework
	for _, name := range v.order {
		if f := v.frameworks[name]; f.AppliesTo(cc) {
			out = append(out, f)
		}
	}
	return out
}

// Consents returns the consent registry.
func (v *Validator) Consents() *ConsentRegistry {
	return v.consents
}

// AuditLog returns the retained compliance audit entries, oldest first.
func (v *Validator) AuditLog() []audit.Entry {
	return v.audit.Query(&audit.Filter{Category: audit.CategoryCompliance})
}

// Validate checks the record against every applicable framework: lawful
// basis, consent, storage limitation, card data protection, and the
// framework and schema compliance rules. Every call is audited.
//
// An unexpected internal failure is returned as a
// *validation.ComplianceViolationError.
func (v *Validator) Validate(ctx context.Context, record validation.Record, vctx *validation.Context) (result *validation.Result, err error) {
	if vctx == nil {
		return nil, fmt.Errorf("%w: nil context", validation.ErrInvalidContext)
	}
	cc := vctx.Compliance
	current := ""
	defer func() {
		if rec := recover(); rec != nil {
			v.logger.Error("compliance validation panicked", "entity_type", vctx.EntityType, "framework", current, "panic", rec)
			result = nil
			err = &validation.ComplianceViolationError{
				Kind:         "internal",
				Framework:    current,
				EntityType:   vctx.EntityType,
				EntityID:     vctx.EntityID,
				Jurisdiction: jurisdictionOf(cc),
				Cause:        validation.Recovered(rec),
			}
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := v.now().UTC()
	result = validation.NewResult(vctx.EntityType)
	var violations []Violation

	if cc == nil && v.config.RequireContext {
		result.AddError(validation.Error{
			Code:     validation.CodeMissingComplianceContext,
			Message:  "compliance context is required",
			Severity: validation.SeverityHigh,
			Category: validation.CategoryCompliance,
		})
		violations = append(violations, Violation{
			Code:     validation.CodeMissingComplianceContext,
			Message:  "compliance context is required",
			Severity: validation.SeverityHigh,
		})
	}

	applicable := v.applicable(cc)
	names := make([]string, 0, len(applicable))
	for _, f := range applicable {
		names = append(names, f.Name)
	}

	var findings []finding
	if cc != nil {
		if fs := requiring(applicable, CheckLawfulBasis); len(fs) > 0 {
			current = fs[0]
			findings = append(findings, v.checkLawfulBasis(cc, fs)...)
		}
		optIn := requiring(applicable, CheckConsent)
		optOut := requiring(applicable, CheckOptOut)
		if len(optIn) > 0 || len(optOut) > 0 {
			current = slices.Concat(optIn, optOut)[0]
			findings = append(findings, v.checkConsent(cc, slices.Concat(optIn, optOut), len(optIn) > 0, now)...)
		}
		if fs := requiring(applicable, CheckRetention); len(fs) > 0 {
			current = fs[0]
			findings = append(findings, v.checkRetention(record, cc, fs, now)...)
		}
	}
	if fs := requiring(applicable, CheckCardData); len(fs) > 0 {
		current = fs[0]
		findings = append(findings, v.checkCardData(record, fs)...)
	}
	for _, f := range findings {
		if f.warning {
			result.AddWarning(validation.Warning{
				Field:          f.Field,
				Code:           f.Code,
				Message:        f.Message,
				Recommendation: f.Remediation,
			})
			continue
		}
		errCtx := map[string]any{"frameworks": f.Frameworks}
		for k, val := range f.context {
			errCtx[k] = val
		}
		result.AddError(validation.Error{
			Field:    f.Field,
			Code:     f.Code,
			Message:  f.Message,
			Severity: f.Severity,
			Category: validation.CategoryCompliance,
			Context:  errCtx,
		})
		violations = append(violations, f.Violation)
	}

	env := &rules.Env{Record: record, Context: vctx, Now: now}
	ruleRuns := 0
	for _, f := range applicable {
		current = f.Name
		outcomes := rules.Evaluate(ctx, f.Rules, env)
		rules.Apply(result, outcomes, validation.CategoryCompliance, validation.CodeComplianceRuleFailed)
		violations = append(violations, ruleViolations(outcomes, []string{f.Name})...)
		ruleRuns += len(outcomes)
	}
	if s := v.schema(vctx.EntityType); s != nil && len(s.ComplianceRules) > 0 {
		current = "schema"
		outcomes := rules.Evaluate(ctx, s.ComplianceRules, env)
		rules.Apply(result, outcomes, validation.CategoryCompliance, validation.CodeComplianceRuleFailed)
		violations = append(violations, ruleViolations(outcomes, names)...)
		ruleRuns += len(outcomes)
	}
	result.Metadata.Performance = &validation.Performance{RuleExecutions: ruleRuns}

	v.record(ctx, result, vctx, now, names, violations)
	return result, nil
}

// requiring returns the names of the frameworks that require check.
func requiring(fs []*Framework, check Check) []string {
	var out []string
	for _, f := range fs {
		if f.Checks.Has(check) {
			out = append(out, f.Name)
		}
	}
	return out
}

func ruleViolations(outcomes []rules.Outcome, frameworks []string) []Violation {
	var out []Violation
	for _, o := range outcomes {
		if o.Passed || (o.Err == nil && !o.Rule.Mandatory) {
			continue
		}
		v := Violation{
			Frameworks:  frameworks,
			Code:        validation.CodeComplianceRuleFailed,
			Field:       o.Rule.Field,
			Message:     o.Rule.FailureMessage(),
			Remediation: o.Rule.Recommendation,
			Severity:    o.Rule.Severity,
		}
		if o.Err != nil {
			v.Code = validation.CodeRuleEvaluationError
			v.Message = o.Err.Error()
			v.Severity = validation.SeverityMedium
		}
		out = append(out, v)
	}
	return out
}

func (v *Validator) record(ctx context.Context, result *validation.Result, vctx *validation.Context, now time.Time, frameworks []string, violations []Violation) {
	outcome := audit.OutcomeCompliant
	if len(violations) > 0 {
		outcome = audit.OutcomeViolation
	}
	entry := v.audit.Append(ctx, audit.Entry{
		Timestamp:  now,
		Category:   audit.CategoryCompliance,
		Actor:      vctx.Actor(),
		Action:     "validate." + string(vctx.Operation),
		EntityType: vctx.EntityType,
		EntityID:   vctx.EntityID,
		Outcome:    outcome,
		Details: map[string]any{
			"jurisdiction": jurisdictionOf(vctx.Compliance),
			"frameworks":   frameworks,
			"violations":   violations,
		},
	})
	result.Metadata.AuditEntries = append(result.Metadata.AuditEntries, entry.ID)

	if outcome == audit.OutcomeViolation {
		v.logger.Warn("compliance violation",
			"entity_type", vctx.EntityType,
			"entity_id", vctx.EntityID,
			"frameworks", frameworks,
			"violations", len(violations),
		)
	}
}

func (v *Validator) schema(entityType string) *schema.EntitySchema {
	if v.schemas == nil {
		return nil
	}
	s, _ := v.schemas.Get(entityType, "")
	return s
}

func jurisdictionOf(cc *validation.ComplianceContext) string {
	if cc == nil {
		return ""
	}
	return cc.Jurisdiction
}
