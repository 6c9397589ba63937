package schema

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats summarizes registry contents and lookups.
type Stats struct {
	Types      int   `json:"types"`
	Schemas    int   `json:"schemas"`
	Generated  int   `json:"generated"`
	Lookups    int64 `json:"lookups"`
	Misses     int64 `json:"misses"`
	LastReload int64 `json:"last_reload_unix"`
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// SeedCore registers the built-in schemas on creation and reload.
	SeedCore bool

	// Dir optionally names a directory of YAML schema files loaded on
	// creation and reload.
	Dir string
}

// DefaultRegistryConfig returns a configuration that seeds the core schemas.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{SeedCore: true}
}

// Registry stores versioned entity schemas. It is safe for concurrent use;
// lookups take a read lock and registration a write lock.
type Registry struct {
	config *RegistryConfig
	logger *slog.Logger

	mu         sync.RWMutex
	schemas    map[string]*EntitySchema
	versions   map[string][]string
	generated  map[string]*EntitySchema
	lastReload int64

	lookups atomic.Int64
	misses  atomic.Int64

	now func() int64
}

// NewRegistry creates a registry. A nil config uses DefaultRegistryConfig.
// Errors loading the schema directory are returned alongside a usable
// registry holding the core schemas.
func NewRegistry(config *RegistryConfig, logger *slog.Logger) (*Registry, error) {
	if config == nil {
		config = DefaultRegistryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		config: config,
		logger: logger.With("component", "schema.registry"),
		now:    unixNow,
	}
	return r, r.Reload()
}

// Register adds or replaces a schema.
func (r *Registry) Register(s *EntitySchema) error {
	if err := Validate(s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(s)
	return nil
}

func (r *Registry) registerLocked(s *EntitySchema) {
	key := s.Key()
	if _, exists := r.schemas[key]; !exists {
		vs := append(r.versions[s.EntityType], s.Version)
		sort.Strings(vs)
		r.versions[s.EntityType] = vs
	}
	r.schemas[key] = s
	delete(r.generated, s.EntityType)
}

// Get returns the schema for entityType at version. An empty version
// resolves to the lexicographically greatest registered version. When no
// schema is registered for entityType at all, a permissive schema is
// synthesized and cached. A missing explicit version of a registered type
// returns false.
func (r *Registry) Get(entityType, version string) (*EntitySchema, bool) {
	r.lookups.Add(1)

	r.mu.RLock()
	s, ok, known := r.lookupLocked(entityType, version)
	r.mu.RUnlock()
	if ok {
		return s, true
	}
	if known {
		r.misses.Add(1)
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok, known := r.lookupLocked(entityType, version); ok || known {
		return s, ok
	}
	r.misses.Add(1)
	s = Permissive(entityType, version)
	r.generated[entityType] = s
	r.logger.Debug("synthesized permissive schema", "entity_type", entityType)
	return s, true
}

// lookupLocked reports the schema, whether it was found, and whether the
// type has registered versions.
func (r *Registry) lookupLocked(entityType, version string) (*EntitySchema, bool, bool) {
	vs := r.versions[entityType]
	if len(vs) > 0 {
		if version == "" {
			version = vs[len(vs)-1]
		}
		s, ok := r.schemas[Key(entityType, version)]
		return s, ok, true
	}
	if s, ok := r.generated[entityType]; ok {
		return s, true, false
	}
	return nil, false, false
}

// MustGet is like Get but returns ErrSchemaNotFound for a missing version.
func (r *Registry) MustGet(entityType, version string) (*EntitySchema, error) {
	s, ok := r.Get(entityType, version)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, Key(entityType, version))
	}
	return s, nil
}

// Versions returns the sorted registered versions of entityType.
func (r *Registry) Versions(entityType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.versions[entityType]...)
}

// LatestVersion returns the greatest registered version of entityType.
func (r *Registry) LatestVersion(entityType string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := r.versions[entityType]
	if len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

// Has reports whether a schema is registered. Synthesized schemas do not
// count and Has never synthesizes.
func (r *Registry) Has(entityType, version string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if version == "" {
		return len(r.versions[entityType]) > 0
	}
	_, ok := r.schemas[Key(entityType, version)]
	return ok
}

// Types returns the registered entity types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.versions))
	for t := range r.versions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Reload clears registered and synthesized schemas, then re-seeds the core
// set and the configured schema directory. The core set is always restored
// even if the directory fails to load.
func (r *Registry) Reload() error {
	var loaded []*EntitySchema
	var loadErr error
	if r.config.Dir != "" {
		loaded, loadErr = LoadDir(r.config.Dir)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas = make(map[string]*EntitySchema)
	r.versions = make(map[string][]string)
	r.generated = make(map[string]*EntitySchema)
	if r.config.SeedCore {
		for _, s := range CoreSchemas() {
			r.registerLocked(s)
		}
	}
	for _, s := range loaded {
		r.registerLocked(s)
	}
	r.lastReload = r.now()

	r.logger.Info("schema registry reloaded",
		"schemas", len(r.schemas),
		"from_dir", len(loaded),
	)
	if loadErr != nil {
		r.logger.Error("schema directory load failed", "dir", r.config.Dir, "error", loadErr)
		return loadErr
	}
	return nil
}

// Stats returns a snapshot of registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Types:      len(r.versions),
		Schemas:    len(r.schemas),
		Generated:  len(r.generated),
		Lookups:    r.lookups.Load(),
		Misses:     r.misses.Load(),
		LastReload: r.lastReload,
	}
}

func unixNow() int64 {
	return time.Now().Unix()
}
