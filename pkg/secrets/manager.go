package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"
)

// refPattern matches ${secret:name} references in configuration values.
var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets from providers tried in order. The first
// provider that supports a name and returns a value wins.
type Manager struct {
	providers []Provider
	cache     *cache
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache caches resolved values.
func WithCache(config CacheConfig) Option {
	return func(m *Manager) { m.cache.config = config }
}

// WithClock overrides the time source of the cache.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.cache.now = now }
}

// NewManager creates a manager over providers.
func NewManager(providers []Provider, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		providers: providers,
		cache:     newCache(CacheConfig{}, time.Now),
		logger:    logger.With("component", "secrets"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the value of the named secret.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.get(name); ok {
		return value, nil
	}

	var errs []error
	for _, p := range m.providers {
		if !p.Supports(name) {
			continue
		}
		value, err := p.Get(ctx, name)
		if err != nil {
			m.logger.Debug("secret provider miss", "provider", p.Name(), "secret", redact(name), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		m.cache.set(name, value)
		m.logger.Debug("secret resolved", "provider", p.Name(), "secret", redact(name))
		return value, nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %s (no provider supports it)", ErrNotFound, name)
	}
	return "", fmt.Errorf("secret %s: %w", name, errors.Join(errs...))
}

// Resolve replaces every ${secret:name} reference in s. References that
// cannot be resolved are left in place and reported in the error.
func (m *Manager) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		value, err := m.Get(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})
	return out, errors.Join(errs...)
}

// ResolveAll resolves references in place in every target.
func (m *Manager) ResolveAll(ctx context.Context, targets ...*string) error {
	var errs []error
	for _, t := range targets {
		if t == nil || !HasReference(*t) {
			continue
		}
		value, err := m.Resolve(ctx, *t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*t = value
	}
	return errors.Join(errs...)
}

// Refresh drops cached values in the manager and in every provider that
// caches.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, p := range m.providers {
		if r, ok := p.(Refresher); ok {
			if err := r.Refresh(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	m.cache.clear()
	return errors.Join(errs...)
}

// Close releases providers that hold resources.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.providers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// HasReference reports whether s contains a ${secret:...} reference.
func HasReference(s string) bool {
	return refPattern.MatchString(s)
}

// redact keeps secret names out of logs beyond their first and last two
// characters.
func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
