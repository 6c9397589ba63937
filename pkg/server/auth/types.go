package auth

import "context"

// Config configures API key authentication for the HTTP API.
type Config struct {
	// Enabled requires a valid API key on every request outside the
	// public paths.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Keys are the accepted API keys. Key values may be secret references
	// such as "${secret:api-key-ops}".
	Keys []KeyConfig `yaml:"keys"`

	// Sources lists where keys are read from, in order.
	// Default: Authorization header with Bearer scheme, then X-API-Key.
	Sources []Source `yaml:"sources"`

	// PublicPaths are served without authentication.
	// Default: /health, /ready, /version and the metrics path.
	PublicPaths []string `yaml:"public_paths"`
}

// KeyConfig binds an API key to the principal it authenticates.
type KeyConfig struct {
	Key         string   `yaml:"key"`
	UserID      string   `yaml:"user_id"`
	Roles       []string `yaml:"roles"`
	Permissions []string `yaml:"permissions"`
	Disabled    bool     `yaml:"disabled"`
}

// Source describes where an API key is extracted from.
type Source struct {
	// Type is "header" or "query".
	Type string `yaml:"type"`
	// Name is the header or query parameter name.
	Name string `yaml:"name"`
	// Scheme is an optional prefix such as "Bearer".
	Scheme string `yaml:"scheme"`
}

// DefaultSources returns the sources used when none are configured.
func DefaultSources() []Source {
	return []Source{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		{Type: "header", Name: "X-API-Key"},
	}
}

// Principal is the identity an API key authenticates.
type Principal struct {
	UserID      string
	Roles       []string
	Permissions []string
}

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}
