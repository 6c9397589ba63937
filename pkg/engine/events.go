package engine

import (
	"context"
	"slices"
	"time"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/validation"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventStarted   EventType = "validation.started"
	EventCompleted EventType = "validation.completed"
	EventFailed    EventType = "validation.failed"
)

// Event describes a step in the life of one validation.
type Event struct {
	Type         EventType            `json:"type"`
	ValidationID string               `json:"validation_id"`
	EntityType   string               `json:"entity_type"`
	EntityID     string               `json:"entity_id,omitempty"`
	Actor        string               `json:"actor,omitempty"`
	Operation    validation.Operation `json:"operation"`
	Timestamp    time.Time            `json:"timestamp"`

	// Set on completed and failed events.
	Duration time.Duration `json:"duration,omitempty"`

	// Set on completed events.
	Valid    bool `json:"valid,omitempty"`
	Errors   int  `json:"errors,omitempty"`
	Warnings int  `json:"warnings,omitempty"`

	// Set on failed events.
	Err error `json:"-"`
}

func newEvent(t EventType, id string, vctx *validation.Context, now time.Time) Event {
	return Event{
		Type:         t,
		ValidationID: id,
		EntityType:   vctx.EntityType,
		EntityID:     vctx.EntityID,
		Actor:        vctx.Actor(),
		Operation:    vctx.Operation,
		Timestamp:    now.UTC(),
	}
}

// Listener receives lifecycle events. Listeners are called synchronously on
// the validating goroutine and must not block. A panicking listener is
// logged and does not affect the validation.
type Listener interface {
	OnEvent(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	e.listenersMu.RLock()
	listeners := slices.Clone(e.listeners)
	e.listenersMu.RUnlock()

	for _, l := range listeners {
		e.notify(ctx, l, ev)
	}
	if e.config.AuditLifecycle {
		e.ring.Append(ctx, lifecycleEntry(ev))
	}
}

func (e *Engine) notify(ctx context.Context, l Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.ErrorContext(ctx, "event listener panicked",
				"event", ev.Type,
				"entity_type", ev.EntityType,
				"panic", rec)
		}
	}()
	l.OnEvent(ctx, ev)
}

func lifecycleEntry(ev Event) audit.Entry {
	entry := audit.Entry{
		Timestamp:  ev.Timestamp,
		Category:   audit.CategoryOps,
		Actor:      ev.Actor,
		Action:     "validate." + string(ev.Operation),
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Details:    map[string]any{"validation_id": ev.ValidationID},
	}
	switch ev.Type {
	case EventStarted:
		entry.Outcome = audit.OutcomeStarted
	case EventCompleted:
		entry.Outcome = audit.OutcomeCompleted
		entry.Details["valid"] = ev.Valid
		entry.Details["errors"] = ev.Errors
		entry.Details["warnings"] = ev.Warnings
		entry.Details["duration_ms"] = ev.Duration.Milliseconds()
	case EventFailed:
		entry.Outcome = audit.OutcomeFailed
		if ev.Err != nil {
			entry.Details["error"] = ev.Err.Error()
		}
	}
	return entry
}
