package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures a BreakerSink.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string `yaml:"name"`

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32 `yaml:"max_requests"`
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Name:             "audit-sink",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
	}
}

// BreakerSink wraps a Sink with a circuit breaker so a failing downstream
// sink is skipped instead of slowing every validation. While open, Write
// returns gobreaker.ErrOpenState immediately.
type BreakerSink struct {
	next    Sink
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerSink wraps next. A nil config uses DefaultBreakerConfig.
func NewBreakerSink(next Sink, config *BreakerConfig, logger *slog.Logger) *BreakerSink {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.breaker")
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	return &BreakerSink{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        config.Name,
			MaxRequests: config.MaxRequests,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
	}
}

// Write implements Sink.
func (b *BreakerSink) Write(ctx context.Context, e Entry) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Write(ctx, e)
	})
	return err
}

// State returns the breaker state.
func (b *BreakerSink) State() gobreaker.State {
	return b.breaker.State()
}
