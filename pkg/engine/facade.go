package engine

import (
	"context"
	"fmt"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/compliance"
	"recordguard-hq/recordguard/pkg/quality"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/security"
	"recordguard-hq/recordguard/pkg/validation"
)

// Registration calls are meant for startup. Each of them clears the result
// cache, since cached results may no longer reflect the registered rules.

// RegisterSchema adds or replaces an entity schema.
func (e *Engine) RegisterSchema(s *schema.EntitySchema) error {
	if err := e.registry.Register(s); err != nil {
		return fmt.Errorf("failed to register schema: %w", err)
	}
	e.invalidate("schema registered", "schema", s.Key())
	return nil
}

// AddSecurityPolicy registers the security policy of an entity type.
func (e *Engine) AddSecurityPolicy(p security.Policy) error {
	if err := e.security.AddPolicy(p); err != nil {
		return err
	}
	e.invalidate("security policy added", "entity_type", p.EntityType)
	return nil
}

// UpdateSecurityPolicy replaces the security policy of an entity type.
func (e *Engine) UpdateSecurityPolicy(p security.Policy) error {
	if err := e.security.UpdatePolicy(p); err != nil {
		return err
	}
	e.invalidate("security policy updated", "entity_type", p.EntityType)
	return nil
}

// AddComplianceFramework registers a compliance framework.
func (e *Engine) AddComplianceFramework(f compliance.Framework) error {
	if err := e.compliance.AddFramework(f); err != nil {
		return err
	}
	e.invalidate("compliance framework added", "framework", f.Name)
	return nil
}

// AddQualityProfile registers the quality profile of an entity type.
func (e *Engine) AddQualityProfile(p quality.Profile) error {
	if err := e.quality.AddProfile(p); err != nil {
		return err
	}
	e.invalidate("quality profile added", "entity_type", p.EntityType)
	return nil
}

func (e *Engine) invalidate(msg string, args ...any) {
	if e.cache != nil {
		e.cache.Clear()
	}
	e.logger.Info(msg, args...)
}

// GenerateComplianceReport summarizes the compliance posture of an entity
// type in a jurisdiction from the audit log.
func (e *Engine) GenerateComplianceReport(entityType, jurisdiction string) compliance.Report {
	return e.compliance.GenerateReport(entityType, jurisdiction)
}

// GenerateQualityReport scores records of one entity type as a batch.
func (e *Engine) GenerateQualityReport(ctx context.Context, records []validation.Record, entityType string) (*quality.Report, error) {
	return e.quality.GenerateReport(ctx, records, entityType)
}

// DetectDuplicates reports pairs of similar records.
func (e *Engine) DetectDuplicates(records []validation.Record, config quality.DuplicateConfig) ([]quality.DuplicatePair, error) {
	return quality.DetectDuplicates(records, config)
}

// ProfileData profiles the fields of records of one entity type.
func (e *Engine) ProfileData(records []validation.Record, entityType string) []quality.FieldProfile {
	return e.quality.ProfileData(records, entityType)
}

// AuditLog returns the retained security audit entries, oldest first.
func (e *Engine) AuditLog() []audit.Entry {
	return e.security.AuditLog()
}

// ComplianceAuditLog returns the retained compliance audit entries, oldest
// first.
func (e *Engine) ComplianceAuditLog() []audit.Entry {
	return e.compliance.AuditLog()
}

// LifecycleLog returns the retained lifecycle entries, oldest first. It is
// empty unless Config.AuditLifecycle is set.
func (e *Engine) LifecycleLog() []audit.Entry {
	return e.ring.Query(&audit.Filter{Category: audit.CategoryOps})
}
