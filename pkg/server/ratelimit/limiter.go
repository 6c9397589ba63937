package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// Config configures per-caller rate limiting of the HTTP API. Zero limits
// are not enforced.
type Config struct {
	// Enabled turns rate limiting on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained request rate per caller.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket capacity per caller.
	// Default: twice RequestsPerSecond, at least 1
	Burst int `yaml:"burst"`

	// MaxConcurrent bounds in-flight requests per caller.
	MaxConcurrent int `yaml:"max_concurrent"`

	// IdleTTL is how long an idle caller's state is kept.
	// Default: 10m
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// DefaultIdleTTL is used when IdleTTL is unset.
const DefaultIdleTTL = 10 * time.Minute

// Check validates the configuration.
func (c *Config) Check() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must not be negative"))
	}
	if c.Burst < 0 {
		errs = append(errs, errors.New("burst must not be negative"))
	}
	if c.MaxConcurrent < 0 {
		errs = append(errs, errors.New("max_concurrent must not be negative"))
	}
	if c.RequestsPerSecond == 0 && c.MaxConcurrent == 0 {
		errs = append(errs, errors.New("at least one of requests_per_second and max_concurrent is required"))
	}
	return errors.Join(errs...)
}

// Decision is the outcome of Acquire.
type Decision struct {
	Allowed bool
	// Reason is "rate" or "concurrency" when the request is rejected.
	Reason string
	// RetryAfter is how long until a token is available.
	RetryAfter time.Duration
}

type callerState struct {
	bucket   *bucket
	inFlight int
	lastSeen time.Time
}

// Limiter tracks token buckets and in-flight counts per caller key.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	callers   map[string]*callerState
	lastSweep time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter for cfg.
func NewLimiter(cfg Config, opts ...Option) *Limiter {
	if cfg.Burst == 0 {
		cfg.Burst = max(1, int(cfg.RequestsPerSecond*2))
	}
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		callers: make(map[string]*callerState),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Acquire admits one request for key. When allowed, the caller must call
// Release once the request finishes.
func (l *Limiter) Acquire(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)

	st, ok := l.callers[key]
	if !ok {
		st = &callerState{}
		if l.cfg.RequestsPerSecond > 0 {
			st.bucket = newBucket(float64(l.cfg.Burst), l.cfg.RequestsPerSecond, now)
		}
		l.callers[key] = st
	}
	st.lastSeen = now

	if l.cfg.MaxConcurrent > 0 && st.inFlight >= l.cfg.MaxConcurrent {
		return Decision{Reason: "concurrency"}
	}
	if st.bucket != nil {
		if ok, wait := st.bucket.take(now); !ok {
			return Decision{Reason: "rate", RetryAfter: wait}
		}
	}
	st.inFlight++
	return Decision{Allowed: true}
}

// Release ends a request admitted by Acquire.
func (l *Limiter) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.callers[key]; ok && st.inFlight > 0 {
		st.inFlight--
		st.lastSeen = l.now()
	}
}

// Callers returns the number of tracked caller keys.
func (l *Limiter) Callers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callers)
}

func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.IdleTTL {
		return
	}
	l.lastSweep = now
	for key, st := range l.callers {
		if st.inFlight == 0 && now.Sub(st.lastSeen) >= l.cfg.IdleTTL {
			delete(l.callers, key)
		}
	}
}
