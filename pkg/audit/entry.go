package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category groups audit entries by the stage that produced them.
type Category string

const (
	CategorySecurity   Category = "security"
	CategoryCompliance Category = "compliance"
	CategoryOps        Category = "ops"
)

// Outcome is the result recorded by an audit entry.
type Outcome string

const (
	OutcomeAllowed   Outcome = "allowed"
	OutcomeDenied    Outcome = "denied"
	OutcomeViolation Outcome = "violation"
	OutcomeCompliant Outcome = "compliant"
	OutcomeStarted   Outcome = "started"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one audit record.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Category   Category       `json:"category"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Details    map[string]any `json:"details,omitempty"`
}

// Denied reports whether the entry records a rejection.
func (e *Entry) Denied() bool {
	return e.Outcome == OutcomeDenied || e.Outcome == OutcomeViolation
}

// stamp fills in the id and timestamp if unset.
func (e *Entry) stamp(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
}

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	Category   Category
	Actor      string
	EntityType string
	Outcome    Outcome
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Match reports whether e satisfies the filter.
func (f *Filter) Match(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	return true
}
