package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the default ring size.
const DefaultCapacity = 10000

// ErrInvalidConfig indicates an invalid audit configuration.
var ErrInvalidConfig = errors.New("invalid audit configuration")

// Sink receives audit entries after they are recorded in memory.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Entry) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, e Entry) error {
	return f(ctx, e)
}

// RingConfig configures a Ring.
type RingConfig struct {
	// Capacity is the number of retained entries. Older entries are dropped.
	Capacity int

	// Sink optionally receives every appended entry. Sink failures are
	// logged and never fail the append.
	Sink Sink

	// OnDrop is called with the number of entries evicted by an append.
	OnDrop func(n int)
}

// DefaultRingConfig returns a ring configuration with DefaultCapacity.
func DefaultRingConfig() *RingConfig {
	return &RingConfig{Capacity: DefaultCapacity}
}

// Validate checks the configuration.
func (c *RingConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	return nil
}

// Ring is a bounded, in-memory audit log. It is best-effort telemetry,
// not a durable log; attach a Sink for durability.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	dropped int64

	config *RingConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRing creates a Ring. A nil config uses DefaultRingConfig.
func NewRing(config *RingConfig, logger *slog.Logger) (*Ring, error) {
	if config == nil {
		config = DefaultRingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ring{
		entries: make([]Entry, 0, min(config.Capacity, 1024)),
		config:  config,
		logger:  logger.With("component", "audit"),
		now:     time.Now,
	}, nil
}

// Append records e, assigning an id and timestamp when missing, and
// returns the stored entry. The oldest entries are evicted once the ring
// is full.
func (r *Ring) Append(ctx context.Context, e Entry) Entry {
	r.mu.Lock()
	e.stamp(r.now())
	r.entries = append(r.entries, e)
	evicted := len(r.entries) - r.config.Capacity
	if evicted > 0 {
		r.entries = r.entries[evicted:]
		r.dropped += int64(evicted)
	}
	r.mu.Unlock()

	if evicted > 0 && r.config.OnDrop != nil {
		r.config.OnDrop(evicted)
	}
	if r.config.Sink != nil {
		if err := r.config.Sink.Write(ctx, e); err != nil {
			r.logger.Warn("audit sink write failed",
				"entry_id", e.ID,
				"category", e.Category,
				"error", err,
			)
		}
	}
	return e
}

// Entries returns a copy of all retained entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Query returns retained entries matching f, oldest first.
func (r *Ring) Query(f *Filter) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for i := range r.entries {
		if !f.Match(&r.entries[i]) {
			continue
		}
		out = append(out, r.entries[i])
		if f != nil && f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// CountDenied counts entries in category by actor with a denied outcome
// at or after since.
func (r *Ring) CountDenied(category Category, actor string, since time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := &r.entries[i]
		if e.Timestamp.Before(since) {
			continue
		}
		if e.Category == category && e.Actor == actor && e.Denied() {
			n++
		}
	}
	return n
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Dropped returns the number of entries evicted since creation.
func (r *Ring) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Count implements Store.
func (r *Ring) Count(context.Context) (int64, error) {
	return int64(r.Len()), nil
}

// DeleteBefore implements Store.
func (r *Ring) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0:0]
	for _, e := range r.entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	deleted := int64(len(r.entries) - len(kept))
	r.entries = kept
	return deleted, nil
}

// DeleteOldest implements Store. Age is append order.
func (r *Ring) DeleteOldest(_ context.Context, n int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 {
		return 0, nil
	}
	if n > int64(len(r.entries)) {
		n = int64(len(r.entries))
	}
	r.entries = append(r.entries[:0:0], r.entries[n:]...)
	return n, nil
}
