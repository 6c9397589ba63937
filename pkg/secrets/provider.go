package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no provider holds a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// Get returns the value of the named secret.
	Get(ctx context.Context, name string) (string, error)

	// Supports reports whether the provider may hold name. The manager
	// skips providers that do not.
	Supports(name string) bool

	// Name identifies the backend in logs ("env", "file").
	Name() string
}

// Refresher is a Provider that caches values and can drop them.
type Refresher interface {
	Provider
	Refresh(ctx context.Context) error
}
