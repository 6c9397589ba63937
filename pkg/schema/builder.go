package schema

import (
	"fmt"
	"regexp"
	"slices"

	"recordguard-hq/recordguard/pkg/rules"
)

// FieldOption configures a field in a Builder.
type FieldOption func(*Field)

// Required marks the field as required.
func Required() FieldOption { return func(f *Field) { f.Required = true } }

// ReadOnly marks the field as read-only.
func ReadOnly() FieldOption { return func(f *Field) { f.ReadOnly = true } }

// PII marks the field as carrying personal data.
func PII() FieldOption { return func(f *Field) { f.PII = true } }

// Describe sets the field description.
func Describe(desc string) FieldOption { return func(f *Field) { f.Description = desc } }

// Enum restricts the field to the given values.
func Enum(values ...any) FieldOption {
	return func(f *Field) { f.Enum = slices.Clone(values) }
}

// Min sets the minimum numeric value.
func Min(v float64) FieldOption { return func(f *Field) { f.Min = &v } }

// Max sets the maximum numeric value.
func Max(v float64) FieldOption { return func(f *Field) { f.Max = &v } }

// MinLength sets the minimum string length.
func MinLength(n int) FieldOption { return func(f *Field) { f.MinLength = &n } }

// MaxLength sets the maximum string length.
func MaxLength(n int) FieldOption { return func(f *Field) { f.MaxLength = &n } }

// Pattern sets a regular expression the string must match.
func Pattern(re string) FieldOption { return func(f *Field) { f.Pattern = re } }

// Format sets a named string format.
func Format(name string) FieldOption { return func(f *Field) { f.Format = name } }

// Items sets the element kind for array fields.
func Items(k Kind) FieldOption { return func(f *Field) { f.Items = k } }

// Builder assembles an EntitySchema in code.
//
//	s, err := schema.New("Invoice", "1.0.0").
//	    String("number", schema.Required(), schema.MaxLength(32)).
//	    Number("amount", schema.Required(), schema.Min(0)).
//	    BusinessRule(rule).
//	    Build()
type Builder struct {
	s    *EntitySchema
	errs []error
}

// New starts a schema for entityType at version.
func New(entityType, version string) *Builder {
	return &Builder{s: &EntitySchema{EntityType: entityType, Version: version}}
}

// Field adds a field of kind k.
func (b *Builder) Field(name string, k Kind, opts ...FieldOption) *Builder {
	f := Field{Name: name, Kind: k}
	for _, opt := range opts {
		opt(&f)
	}
	b.s.Fields = append(b.s.Fields, f)
	return b
}

// String adds a string field.
func (b *Builder) String(name string, opts ...FieldOption) *Builder {
	return b.Field(name, KindString, opts...)
}

// Integer adds an integer field.
func (b *Builder) Integer(name string, opts ...FieldOption) *Builder {
	return b.Field(name, KindInteger, opts...)
}

// Number adds a numeric field.
func (b *Builder) Number(name string, opts ...FieldOption) *Builder {
	return b.Field(name, KindNumber, opts...)
}

// Boolean adds a boolean field.
func (b *Builder) Boolean(name string, opts ...FieldOption) *Builder {
	return b.Field(name, KindBoolean, opts...)
}

// Timestamp adds a timestamp field.
func (b *Builder) Timestamp(name string, opts ...FieldOption) *Builder {
	return b.Field(name, KindTimestamp, opts...)
}

// Object adds a nested object field.
func (b *Builder) Object(name string, opts ...FieldOption) *Builder {
	return b.Field(name, KindObject, opts...)
}

// Array adds an array field.
func (b *Builder) Array(name string, opts ...FieldOption) *Builder {
	return b.Field(name, KindArray, opts...)
}

// AllowAdditionalFields permits fields not declared on the schema.
func (b *Builder) AllowAdditionalFields() *Builder {
	b.s.AdditionalFields = true
	return b
}

// BusinessRule attaches business rules.
func (b *Builder) BusinessRule(rs ...rules.Rule) *Builder {
	for _, r := range rs {
		b.s.BusinessRules = append(b.s.BusinessRules, r.WithKind(rules.KindBusiness))
	}
	return b
}

// SecurityRule attaches security rules.
func (b *Builder) SecurityRule(rs ...rules.Rule) *Builder {
	for _, r := range rs {
		b.s.SecurityRules = append(b.s.SecurityRules, r.WithKind(rules.KindSecurity))
	}
	return b
}

// ComplianceRule attaches compliance rules.
func (b *Builder) ComplianceRule(rs ...rules.Rule) *Builder {
	for _, r := range rs {
		b.s.ComplianceRules = append(b.s.ComplianceRules, r.WithKind(rules.KindCompliance))
	}
	return b
}

// Describe sets the schema description.
func (b *Builder) Describe(desc string) *Builder {
	b.s.Metadata.Description = desc
	return b
}

// Tags adds descriptive tags.
func (b *Builder) Tags(tags ...string) *Builder {
	b.s.Metadata.Tags = append(b.s.Metadata.Tags, tags...)
	return b
}

// Relationship declares a relationship to another entity type.
func (b *Builder) Relationship(rel Relationship) *Builder {
	b.s.Metadata.Relationships = append(b.s.Metadata.Relationships, rel)
	return b
}

// Build validates and returns the schema.
func (b *Builder) Build() (*EntitySchema, error) {
	if err := Validate(b.s); err != nil {
		return nil, err
	}
	return b.s, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *EntitySchema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a schema definition for consistency.
func Validate(s *EntitySchema) error {
	if s == nil {
		return fmt.Errorf("%w: nil schema", ErrInvalidSchema)
	}
	if s.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidSchema)
	}
	if s.Version == "" {
		return fmt.Errorf("%w: %s: version is required", ErrInvalidSchema, s.EntityType)
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s: field without a name", ErrInvalidSchema, s.EntityType)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidSchema, s.EntityType, f.Name)
		}
		seen[f.Name] = true
		if !f.Kind.Valid() {
			return fmt.Errorf("%w: %s.%s: unknown kind %q", ErrInvalidSchema, s.EntityType, f.Name, f.Kind)
		}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return fmt.Errorf("%w: %s.%s: bad pattern: %v", ErrInvalidSchema, s.EntityType, f.Name, err)
			}
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("%w: %s.%s: min greater than max", ErrInvalidSchema, s.EntityType, f.Name)
		}
	}

	ids := make(map[string]bool)
	for _, group := range [][]rules.Rule{s.BusinessRules, s.SecurityRules, s.ComplianceRules} {
		for _, r := range group {
			if r.ID == "" {
				return fmt.Errorf("%w: %s: rule without an id", ErrInvalidSchema, s.EntityType)
			}
			if ids[r.ID] {
				return fmt.Errorf("%w: %s: duplicate rule id %q", ErrInvalidSchema, s.EntityType, r.ID)
			}
			ids[r.ID] = true
		}
	}
	return nil
}
