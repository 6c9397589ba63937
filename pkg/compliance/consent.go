package compliance

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"recordguard-hq/recordguard/pkg/validation"
)

// Consent is the recorded consent of one data subject.
type Consent struct {
	SubjectID   string
	Status      validation.ConsentStatus
	Purposes    []string
	GrantedAt   time.Time
	ExpiresAt   time.Time // zero means no expiry
	WithdrawnAt time.Time
}

// Expired reports whether given consent has lapsed at now.
func (c *Consent) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Covers reports whether the consent names every purpose. Purposes match
// case-insensitively.
func (c *Consent) Covers(purposes []string) bool {
	for _, p := range purposes {
		if !slices.ContainsFunc(c.Purposes, func(granted string) bool {
			return strings.EqualFold(granted, p)
		}) {
			return false
		}
	}
	return true
}

// ConsentRegistry stores consent by data subject id. It is safe for
// concurrent use.
type ConsentRegistry struct {
	mu       sync.RWMutex
	consents map[string]Consent
	now      func() time.Time
}

// NewConsentRegistry creates an empty registry.
func NewConsentRegistry() *ConsentRegistry {
	return &ConsentRegistry{
		consents: make(map[string]Consent),
		now:      time.Now,
	}
}

// Grant records consent for purposes. A zero ttl never expires. Granting
// again replaces the previous consent, including a withdrawal.
func (r *ConsentRegistry) Grant(subjectID string, purposes []string, ttl time.Duration) (Consent, error) {
	if subjectID == "" {
		return Consent{}, fmt.Errorf("subject id cannot be empty")
	}
	now := r.now().UTC()
	c := Consent{
		SubjectID: subjectID,
		Status:    validation.ConsentGiven,
		Purposes:  slices.Clone(purposes),
		GrantedAt: now,
	}
	if ttl > 0 {
		c.ExpiresAt = now.Add(ttl)
	}

	r.mu.Lock()
	r.consents[subjectID] = c
	r.mu.Unlock()
	return c, nil
}

// Withdraw marks the subject's consent as withdrawn.
func (r *ConsentRegistry) Withdraw(subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.consents[subjectID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConsentNotFound, subjectID)
	}
	c.Status = validation.ConsentWithdrawn
	c.WithdrawnAt = r.now().UTC()
	r.consents[subjectID] = c
	return nil
}

// Get returns the subject's consent.
func (r *ConsentRegistry) Get(subjectID string) (Consent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consents[subjectID]
	if ok {
		c.Purposes = slices.Clone(c.Purposes)
	}
	return c, ok
}

// Len returns the number of recorded subjects.
func (r *ConsentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consents)
}
