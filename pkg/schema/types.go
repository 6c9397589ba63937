package schema

import (
	"slices"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"recordguard-hq/recordguard/pkg/rules"
)

// Kind is the value kind a field accepts.
type Kind string

const (
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindTimestamp Kind = "timestamp"
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindAny       Kind = "any"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindInteger, KindNumber, KindBoolean, KindTimestamp, KindObject, KindArray, KindAny:
		return true
	}
	return false
}

// Field describes one record field and its constraints.
type Field struct {
	Name        string   `yaml:"name"`
	Kind        Kind     `yaml:"kind"`
	Required    bool     `yaml:"required"`
	ReadOnly    bool     `yaml:"read_only"`
	PII         bool     `yaml:"pii"`
	Description string   `yaml:"description"`
	Enum        []any    `yaml:"enum"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	MinLength   *int     `yaml:"min_length"`
	MaxLength   *int     `yaml:"max_length"`
	Pattern     string   `yaml:"pattern"`

	// Format is a named string format: email, uri, ipv4, uuid or timestamp.
	Format string `yaml:"format"`

	// Items is the element kind for array fields.
	Items Kind `yaml:"items"`
}

// Relationship links an entity to another entity type.
type Relationship struct {
	Name        string `yaml:"name"`
	Target      string `yaml:"target"`
	Cardinality string `yaml:"cardinality"`
	Field       string `yaml:"field"`
}

// Metadata is descriptive information about an entity schema.
type Metadata struct {
	Description    string         `yaml:"description"`
	RequiredFields []string       `yaml:"required_fields"`
	ReadOnlyFields []string       `yaml:"read_only_fields"`
	PIIFields      []string       `yaml:"pii_fields"`
	Relationships  []Relationship `yaml:"relationships"`
	Tags           []string       `yaml:"tags"`
}

// EntitySchema is the structural and rule definition for one entity type at
// one version. Schemas are immutable once registered.
type EntitySchema struct {
	EntityType string
	Version    string

	// Fields in declaration order.
	Fields []Field

	// AdditionalFields allows fields not listed in Fields.
	AdditionalFields bool

	BusinessRules   []rules.Rule
	SecurityRules   []rules.Rule
	ComplianceRules []rules.Rule

	Metadata Metadata

	// Generated marks a permissive schema synthesized for an unknown type.
	Generated bool

	once     sync.Once
	compiled *gojsonschema.Schema
	compErr  error
}

// Key returns the registry key for the schema.
func (s *EntitySchema) Key() string {
	return Key(s.EntityType, s.Version)
}

// Key builds a registry key.
func Key(entityType, version string) string {
	return entityType + ":" + version
}

// Field returns the named field definition.
func (s *EntitySchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of required fields.
func (s *EntitySchema) RequiredFields() []string {
	names := slices.Clone(s.Metadata.RequiredFields)
	for _, f := range s.Fields {
		if f.Required && !slices.Contains(names, f.Name) {
			names = append(names, f.Name)
		}
	}
	return names
}

// ReadOnlyFields returns the names of read-only fields.
func (s *EntitySchema) ReadOnlyFields() []string {
	names := slices.Clone(s.Metadata.ReadOnlyFields)
	for _, f := range s.Fields {
		if f.ReadOnly && !slices.Contains(names, f.Name) {
			names = append(names, f.Name)
		}
	}
	return names
}

// PIIFields returns the names of fields carrying personal data.
func (s *EntitySchema) PIIFields() []string {
	names := slices.Clone(s.Metadata.PIIFields)
	for _, f := range s.Fields {
		if f.PII && !slices.Contains(names, f.Name) {
			names = append(names, f.Name)
		}
	}
	return names
}

// RuleCount returns the total number of rules attached to the schema.
func (s *EntitySchema) RuleCount() int {
	return len(s.BusinessRules) + len(s.SecurityRules) + len(s.ComplianceRules)
}
