// Package schema provides versioned structural definitions for entity types.
//
// # Overview
//
// An EntitySchema describes the fields of one entity type at one version as
// a tagged description (field name to kind plus constraints), together with
// the business, security and compliance rules attached to the type. Schemas
// are built in code with the fluent Builder or loaded from YAML files; no
// reflection or struct tags are involved.
//
//	s := schema.New("Invoice", "1.0.0").
//	    String("number", schema.Required(), schema.MaxLength(32)).
//	    Number("amount", schema.Required(), schema.Min(0)).
//	    MustBuild()
//
// # Registry
//
// Registry stores schemas keyed by "type:version". Versions are compared as
// strings, so callers must use sortable version strings such as semantic
// versions with equal-width components. Looking up a type that was never
// registered synthesizes and caches a permissive schema instead of failing.
//
//	reg, _ := schema.NewRegistry(schema.DefaultRegistryConfig(), logger)
//	s, ok := reg.Get("Account", "") // latest version
//
// # Structural Checks
//
// Check translates the field descriptions into JSON Schema once per schema
// and validates records with github.com/xeipuuv/gojsonschema. Violations are
// mapped onto stable codes such as REQUIRED_FIELD_MISSING and
// INVALID_ENUM_VALUE.
//
// # Files
//
// LoadDir reads YAML schema files. Rule conditions in files are expressions
// in the closed rule language of package rules. Watcher reloads a Registry
// when files in the schema directory change.
package schema
