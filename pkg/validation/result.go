package validation

import (
	"maps"
	"slices"
	"time"
)

// Result is the outcome of validating one record.
type Result struct {
	Errors        []Error   `json:"errors"`
	Warnings      []Warning `json:"warnings"`
	SanitizedData Record    `json:"sanitized_data,omitempty"`
	Metadata      *Metadata `json:"metadata,omitempty"`
}

// NewResult creates an empty result for entityType.
func NewResult(entityType string) *Result {
	return &Result{
		Errors:   []Error{},
		Warnings: []Warning{},
		Metadata: &Metadata{
			EntityType: entityType,
			Timestamp:  time.Now().UTC(),
		},
	}
}

// Valid reports whether the result carries no errors.
func (r *Result) Valid() bool {
	return r != nil && len(r.Errors) == 0
}

// AddError appends an error.
func (r *Result) AddError(e Error) {
	r.Errors = append(r.Errors, e)
}

// AddWarning appends a warning.
func (r *Result) AddWarning(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// HasCritical reports whether any error is critical.
func (r *Result) HasCritical() bool {
	if r == nil {
		return false
	}
	for _, e := range r.Errors {
		if e.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// HasErrorCode reports whether an error with code is present.
func (r *Result) HasErrorCode(code string) bool {
	if r == nil {
		return false
	}
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarningCode reports whether a warning with code is present.
func (r *Result) HasWarningCode(code string) bool {
	if r == nil {
		return false
	}
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Merge folds other into r. Errors and warnings are concatenated and the
// first non-nil sanitized data wins. Validity is derived from the merged
// error list, so it is implicitly AND-combined.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if r.SanitizedData == nil && other.SanitizedData != nil {
		r.SanitizedData = other.SanitizedData
	}
	if other.Metadata != nil && len(other.Metadata.AuditEntries) > 0 {
		if r.Metadata == nil {
			r.Metadata = &Metadata{}
		}
		r.Metadata.AuditEntries = append(r.Metadata.AuditEntries, other.Metadata.AuditEntries...)
	}
}

// Data returns the sanitized data when present, else original.
func (r *Result) Data(original Record) Record {
	if r != nil && r.SanitizedData != nil {
		return r.SanitizedData
	}
	return original
}

// FailedResult builds a result holding a single critical error describing
// an unexpected failure.
func FailedResult(entityType string, err error) *Result {
	r := NewResult(entityType)
	r.AddError(Error{
		Field:    "",
		Code:     CodeValidationFailed,
		Message:  "validation failed unexpectedly: " + err.Error(),
		Severity: SeverityCritical,
		Category: CategoryData,
	})
	return r
}

// Clone returns a copy of r sharing no mutable state with it.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		Errors:        slices.Clone(r.Errors),
		Warnings:      slices.Clone(r.Warnings),
		SanitizedData: CloneRecord(r.SanitizedData),
	}
	for i := range out.Errors {
		out.Errors[i].Context = maps.Clone(out.Errors[i].Context)
	}
	if r.Metadata != nil {
		md := *r.Metadata
		if md.Performance != nil {
			p := *md.Performance
			md.Performance = &p
		}
		md.AuditEntries = slices.Clone(md.AuditEntries)
		md.Extra = maps.Clone(md.Extra)
		out.Metadata = &md
	}
	return out
}

// CloneRecord deep-copies the maps and slices of a record. Other values are
// copied by assignment.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneRecord(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(x)
	}
	return v
}
