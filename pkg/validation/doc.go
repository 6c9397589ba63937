// Package validation defines the data model shared by every stage of the
// RecordGuard pipeline.
//
// # Overview
//
// A validation call takes a Record and a Context and produces a Result. Each
// pipeline stage (schema, sanitizer, business rules, security, compliance,
// quality) produces its own Result which the engine merges into the final one:
//
//	result := validation.NewResult("Account")
//	result.AddError(validation.Error{
//	    Field:    "accountName",
//	    Code:     validation.CodeRequiredFieldMissing,
//	    Message:  "accountName is required",
//	    Severity: validation.SeverityHigh,
//	    Category: validation.CategoryData,
//	})
//	result.Merge(securityResult)
//
// # Errors and Warnings
//
// Any Error rejects the record. Warnings never block acceptance and may carry a
// remediation Recommendation.
//
// # Failures
//
// Unrecoverable failures are reported through typed errors that callers can
// inspect with errors.As:
//
//   - ValidationFailedError: a failing result in strict mode
//   - SanitizationError: an internal sanitizer fault
//   - SecurityViolationError: an internal security-stage fault
//   - ComplianceViolationError: an internal compliance-stage fault
package validation
