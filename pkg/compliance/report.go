package compliance

import (
	"maps"
	"slices"
	"strings"
	"time"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/validation"
)

// Status is the overall compliance status of a report.
type Status string

const (
	StatusCompliant    Status = "compliant"
	StatusPartial      Status = "partial"
	StatusNonCompliant Status = "non-compliant"
)

// Report summarizes the compliance posture of an entity type in a
// jurisdiction from the retained audit trail.
type Report struct {
	EntityType   string    `json:"entity_type"`
	Jurisdiction string    `json:"jurisdiction"`
	GeneratedAt  time.Time `json:"generated_at"`
	Status       Status    `json:"status"`

	// Frameworks apply to the jurisdiction.
	Frameworks []string `json:"frameworks"`

	// Evaluations is the number of audited validations considered.
	Evaluations int `json:"evaluations"`

	Violations []ReportViolation `json:"violations"`
	Rights     []SubjectRight    `json:"rights"`
	Retention  []RetentionStatus `json:"retention"`
}

// ReportViolation is an audited violation with its remediation deadline.
type ReportViolation struct {
	Violation
	EntityID   string    `json:"entity_id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
	DueBy      time.Time `json:"due_by"`
}

// SubjectRight is a data-subject right and the frameworks granting it.
type SubjectRight struct {
	Right      string   `json:"right"`
	Frameworks []string `json:"frameworks"`
	Supported  bool     `json:"supported"`
}

// RetentionStatus is the storage-limitation status of a data category.
type RetentionStatus struct {
	Category   string `json:"category"`
	PeriodDays int    `json:"period_days,omitempty"`
	Exceeded   int    `json:"exceeded"`
	Status     string `json:"status"`
}

// remediationWindow is the time allowed to remediate a violation.
func remediationWindow(s validation.Severity) time.Duration {
	switch s {
	case validation.SeverityCritical:
		return 24 * time.Hour
	case validation.SeverityHigh:
		return 7 * 24 * time.Hour
	case validation.SeverityMedium:
		return 30 * 24 * time.Hour
	default:
		return 90 * 24 * time.Hour
	}
}

// GenerateReport aggregates the retained compliance audit entries for
// entityType. An empty jurisdiction covers all jurisdictions. The status
// is compliant without violations, non-compliant with any critical
// violation, and partial otherwise.
func (v *Validator) GenerateReport(entityType, jurisdiction string) Report {
	r := Report{
		EntityType:   entityType,
		Jurisdiction: jurisdiction,
		GeneratedAt:  v.now().UTC(),
		Status:       StatusCompliant,
		Frameworks:   v.Applicable(&validation.ComplianceContext{Jurisdiction: jurisdiction}),
		Violations:   []ReportViolation{},
	}

	exceeded := make(map[string]int)
	entries := v.audit.Query(&audit.Filter{Category: audit.CategoryCompliance, EntityType: entityType})
	for _, e := range entries {
		if j, _ := e.Details["jurisdiction"].(string); jurisdiction != "" && !strings.EqualFold(j, jurisdiction) {
			continue
		}
		r.Evaluations++
		violations, _ := e.Details["violations"].([]Violation)
		for _, vi := range violations {
			r.Violations = append(r.Violations, ReportViolation{
				Violation:  vi,
				EntityID:   e.EntityID,
				DetectedAt: e.Timestamp,
				DueBy:      e.Timestamp.Add(remediationWindow(vi.Severity)),
			})
			if vi.Severity == validation.SeverityCritical {
				r.Status = StatusNonCompliant
			} else if r.Status == StatusCompliant {
				r.Status = StatusPartial
			}
			if vi.Code == validation.CodeRetentionExceeded {
				category := vi.DataCategory
				if category == "" {
					category = "unspecified"
				}
				exceeded[category]++
			}
		}
	}

	r.Rights = v.rights(r.Frameworks)
	r.Retention = v.retentionStatus(exceeded)
	return r
}

func (v *Validator) rights(frameworks []string) []SubjectRight {
	v.mu.RLock()
	byRight := make(map[string][]string)
	for _, name := range frameworks {
		for _, right := range v.frameworks[name].Rights {
			byRight[right] = append(byRight[right], name)
		}
	}
	v.mu.RUnlock()

	out := make([]SubjectRight, 0, len(byRight))
	for _, right := range slices.Sorted(maps.Keys(byRight)) {
		out = append(out, SubjectRight{Right: right, Frameworks: byRight[right], Supported: true})
	}
	return out
}

func (v *Validator) retentionStatus(exceeded map[string]int) []RetentionStatus {
	categories := make(map[string]bool)
	for c := range v.config.Retention {
		categories[c] = true
	}
	for c := range exceeded {
		categories[c] = true
	}

	out := make([]RetentionStatus, 0, len(categories))
	for _, c := range slices.Sorted(maps.Keys(categories)) {
		s := RetentionStatus{
			Category:   c,
			PeriodDays: v.config.Retention[c],
			Exceeded:   exceeded[c],
			Status:     "within_policy",
		}
		if s.Exceeded > 0 {
			s.Status = "overdue"
		}
		out = append(out, s)
	}
	return out
}
