package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSchema indicates an inconsistent schema definition.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrSchemaNotFound indicates a lookup for a version that is not registered.
	ErrSchemaNotFound = errors.New("schema not found")
)

// LoadError reports a schema file that could not be loaded.
type LoadError struct {
	Path  string
	Cause error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("loading schema %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}
