package validation

import (
	"strings"
	"time"
)

// Record is the structured payload being validated.
// Values are JSON-like: string, bool, numeric types, time.Time, nil,
// []any and map[string]any.
type Record = map[string]any

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns a comparable weight for the severity (critical is highest).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AboveMedium reports whether findings of this severity are hard errors in
// the security and compliance stages.
func (s Severity) AboveMedium() bool {
	return s.Rank() > SeverityMedium.Rank()
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity parses a severity name, defaulting to medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Category groups findings by the concern that produced them.
type Category string

const (
	CategorySecurity   Category = "security"
	CategoryBusiness   Category = "business"
	CategoryData       Category = "data"
	CategoryCompliance Category = "compliance"
)

// Operation is the kind of record operation being validated.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationRead   Operation = "read"
	OperationSave   Operation = "save"
)

// Writes reports whether the operation stores record content.
func (o Operation) Writes() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationSave
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRead, OperationSave:
		return true
	}
	return false
}

// SecurityContext describes the acting principal.
type SecurityContext struct {
	UserID      string   `json:"user_id" yaml:"user_id"`
	Roles       []string `json:"roles,omitempty" yaml:"roles"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions"`
	IPAddress   string   `json:"ip_address,omitempty" yaml:"ip_address"`
	SessionID   string   `json:"session_id,omitempty" yaml:"session_id"`
	UserAgent   string   `json:"user_agent,omitempty" yaml:"user_agent"`
}

// HasPermission reports whether the principal holds perm or the wildcard.
func (s *SecurityContext) HasPermission(perm string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// HasRole reports whether the principal holds role.
func (s *SecurityContext) HasRole(role string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// ConsentStatus is the caller-declared consent state of a data subject.
type ConsentStatus string

const (
	ConsentGiven     ConsentStatus = "given"
	ConsentWithdrawn ConsentStatus = "withdrawn"
	ConsentPending   ConsentStatus = "pending"
	ConsentUnknown   ConsentStatus = ""
)

// RetentionPolicy bounds how long a record may be stored.
type RetentionPolicy struct {
	// PeriodDays is the maximum record age in days. Zero disables the check.
	PeriodDays int `json:"period_days" yaml:"period_days"`

	// DataCategory names the retention class (e.g. "customer", "financial").
	DataCategory string `json:"data_category,omitempty" yaml:"data_category"`
}

// ComplianceContext describes the regulatory situation of a call.
type ComplianceContext struct {
	Jurisdiction       string           `json:"jurisdiction" yaml:"jurisdiction"`
	DataSubjectID      string           `json:"data_subject_id,omitempty" yaml:"data_subject_id"`
	ConsentStatus      ConsentStatus    `json:"consent_status,omitempty" yaml:"consent_status"`
	LawfulBasis        string           `json:"lawful_basis,omitempty" yaml:"lawful_basis"`
	RetentionPolicy    *RetentionPolicy `json:"retention_policy,omitempty" yaml:"retention_policy"`
	ProcessingPurposes []string         `json:"processing_purposes,omitempty" yaml:"processing_purposes"`
}

// PurposeMentions reports whether any processing purpose contains term.
func (c *ComplianceContext) PurposeMentions(term string) bool {
	if c == nil {
		return false
	}
	term = strings.ToLower(term)
	for _, p := range c.ProcessingPurposes {
		if strings.Contains(strings.ToLower(p), term) {
			return true
		}
	}
	return false
}

// Context describes a single validation call. It is built by the caller and
// treated as read-only by the pipeline.
type Context struct {
	Operation  Operation          `json:"operation" yaml:"operation"`
	EntityType string             `json:"entity_type" yaml:"entity_type"`
	EntityID   string             `json:"entity_id,omitempty" yaml:"entity_id"`
	UserID     string             `json:"user_id,omitempty" yaml:"user_id"`
	Security   *SecurityContext   `json:"security,omitempty" yaml:"security"`
	Compliance *ComplianceContext `json:"compliance,omitempty" yaml:"compliance"`
}

// Actor returns the best-known user id for the call.
func (c *Context) Actor() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	if c.Security != nil {
		return c.Security.UserID
	}
	return ""
}

// Error is a finding that rejects the record.
type Error struct {
	Field    string         `json:"field"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Value    any            `json:"value,omitempty"`
	Severity Severity       `json:"severity"`
	Category Category       `json:"category"`
	Context  map[string]any `json:"context,omitempty"`
}

// Warning is a non-blocking finding.
type Warning struct {
	Field          string `json:"field"`
	Code           string `json:"code"`
	Message        string `json:"message"`
	Value          any    `json:"value,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// Performance holds per-call timing counters.
type Performance struct {
	Total          time.Duration `json:"total"`
	Validation     time.Duration `json:"validation"`
	Sanitization   time.Duration `json:"sanitization"`
	RuleExecutions int           `json:"rule_executions"`
}

// Metadata describes how a Result was produced.
type Metadata struct {
	ValidationID string         `json:"validation_id,omitempty"`
	EntityType   string         `json:"entity_type"`
	Timestamp    time.Time      `json:"timestamp"`
	Performance  *Performance   `json:"performance,omitempty"`
	AuditEntries []string       `json:"audit_entries,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}
