package validation

import (
	"errors"
	"fmt"
)

// Common validation errors.
var (
	// ErrInvalidRecord indicates a nil or malformed record.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidContext indicates a nil or incomplete validation context.
	ErrInvalidContext = errors.New("invalid validation context")
)

// ValidationFailedError is returned in strict mode when the final result is
// not valid. It carries the full error and warning set.
type ValidationFailedError struct {
	EntityType string
	EntityID   string
	Errors     []Error
	Warnings   []Warning
}

// Error implements the error interface.
func (e *ValidationFailedError) Error() string {
	first := ""
	if len(e.Errors) > 0 {
		first = fmt.Sprintf(": %s (%s)", e.Errors[0].Message, e.Errors[0].Code)
	}
	return fmt.Sprintf("validation of %s %q failed with %d errors%s",
		e.EntityType, e.EntityID, len(e.Errors), first)
}

// SanitizationError reports an internal sanitizer fault.
type SanitizationError struct {
	EntityType string
	Field      string
	Cause      error
}

// Error implements the error interface.
func (e *SanitizationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("sanitization of %s field %q failed: %v", e.EntityType, e.Field, e.Cause)
	}
	return fmt.Sprintf("sanitization of %s failed: %v", e.EntityType, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SanitizationError) Unwrap() error {
	return e.Cause
}

// SecurityViolationError reports a fatal failure inside the security stage.
type SecurityViolationError struct {
	Kind       string
	EntityType string
	EntityID   string
	Actor      string
	Operation  Operation
	Cause      error
}

// Error implements the error interface.
func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("security violation (%s) on %s %q by %q during %s: %v",
		e.Kind, e.EntityType, e.EntityID, e.Actor, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SecurityViolationError) Unwrap() error {
	return e.Cause
}

// ComplianceViolationError reports a fatal failure inside the compliance stage.
type ComplianceViolationError struct {
	Kind         string
	Framework    string
	EntityType   string
	EntityID     string
	Jurisdiction string
	Cause        error
}

// Error implements the error interface.
func (e *ComplianceViolationError) Error() string {
	return fmt.Sprintf("compliance violation (%s) under %s on %s %q in %s: %v",
		e.Kind, e.Framework, e.EntityType, e.EntityID, e.Jurisdiction, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ComplianceViolationError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recovered converts a recovered value to an error.
func Recovered(v any) error {
	if err, ok := v.(error); ok {
		return &PanicError{Value: err}
	}
	return &PanicError{Value: v}
}
