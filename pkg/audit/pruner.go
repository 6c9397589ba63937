package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Store is an audit store that supports retention pruning. Ring and
// SQLiteSink implement it.
type Store interface {
	Count(ctx context.Context) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOldest(ctx context.Context, n int64) (int64, error)
}

// PrunerConfig configures retention pruning.
type PrunerConfig struct {
	// RetentionDays is the number of days to retain entries.
	// 0 keeps entries forever.
	RetentionDays int `yaml:"retention_days"`

	// MaxEntries is the maximum number of entries to keep.
	// 0 means unlimited.
	MaxEntries int64 `yaml:"max_entries"`

	// Schedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`
}

// DefaultPrunerConfig returns the default retention configuration.
func DefaultPrunerConfig() *PrunerConfig {
	return &PrunerConfig{
		RetentionDays: 90,
		Schedule:      "0 3 * * *",
	}
}

// Validate checks the configuration.
func (c *PrunerConfig) Validate() error {
	if c.RetentionDays < 0 {
		return fmt.Errorf("%w: retention_days cannot be negative", ErrInvalidConfig)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max_entries cannot be negative", ErrInvalidConfig)
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%w: invalid cron schedule %q: %v", ErrInvalidConfig, c.Schedule, err)
		}
	}
	return nil
}

// Pruner enforces retention on audit stores, on demand or on a cron
// schedule.
type Pruner struct {
	stores []Store
	config *PrunerConfig
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner over stores. A nil config uses
// DefaultPrunerConfig.
func NewPruner(config *PrunerConfig, logger *slog.Logger, stores ...Store) (*Pruner, error) {
	if config == nil {
		config = DefaultPrunerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		stores: stores,
		config: config,
		logger: logger.With("component", "audit.retention"),
		now:    time.Now,
		cron:   cron.New(),
	}, nil
}

// Prune deletes entries older than the retention period, then the oldest
// entries beyond MaxEntries. It returns the total number deleted across
// all stores.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64
	for _, s := range p.stores {
		if p.config.RetentionDays > 0 {
			cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
			n, err := s.DeleteBefore(ctx, cutoff)
			if err != nil {
				return total, fmt.Errorf("prune by age failed: %w", err)
			}
			total += n
		}
		if p.config.MaxEntries > 0 {
			count, err := s.Count(ctx)
			if err != nil {
				return total, fmt.Errorf("failed to count entries: %w", err)
			}
			if excess := count - p.config.MaxEntries; excess > 0 {
				n, err := s.DeleteOldest(ctx, excess)
				if err != nil {
					return total, fmt.Errorf("prune by count failed: %w", err)
				}
				total += n
			}
		}
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"deleted_count", total,
			"retention_days", p.config.RetentionDays,
			"max_entries", p.config.MaxEntries,
		)
	}
	return total, nil
}

// Start schedules pruning. It does nothing when no schedule is configured.
// The schedule stops when ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" || p.running {
		return nil
	}
	_, err := p.cron.AddFunc(p.config.Schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}
	p.cron.Start()
	p.running = true
	p.logger.Info("audit retention scheduler started", "schedule", p.config.Schedule)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("audit retention scheduler stopped")
}

// IsRunning reports whether the schedule is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the next scheduled prune, or nil when not scheduled.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if !p.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
