// Package engine orchestrates record validation.
//
// An Engine runs each record through six stages and merges their findings
// into one validation.Result:
//
//	Record + Context
//	       ↓
//	Schema check       (structure, required fields, read-only fields)
//	       ↓
//	Sanitize           (skipped after a critical error)
//	       ↓
//	Business rules     (rules embedded in the schema)
//	       ↓
//	Security           (credentials, access, threats, field protection)
//	       ↓
//	Compliance         (frameworks, consent, retention)
//	       ↓
//	Quality            (six scored dimensions)
//	       ↓
//	Result (errors, warnings, sanitized data, metadata)
//
// Every stage after sanitization receives the sanitized copy of the record.
// Findings are collected, never thrown: a record with errors still produces
// a Result. Only an invalid context, cancellation or an unrecoverable stage
// failure returns an error. Strict mode additionally returns a
// *validation.ValidationFailedError with every invalid result.
//
// # Basic Usage
//
//	eng, err := engine.New(engine.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//
//	result, err := eng.Validate(ctx, record, &validation.Context{
//	    Operation:  validation.OperationCreate,
//	    EntityType: "Account",
//	    Security:   principal,
//	})
//
// Components not passed as options are created with default settings and
// share one schema registry and one audit log.
//
// # Batches
//
// ValidateBatch validates Config.BatchSize records concurrently at a time
// and returns results in input order. A record that fails unexpectedly gets
// a result with a single critical VALIDATION_FAILED error.
//
// # Observability
//
// Lifecycle events (started, completed, failed) go to registered Listeners
// and, with Config.AuditLifecycle, to the audit log. Timings of the last
// Config.MetricsWindow validations per entity type are available from
// PerformanceStatistics; prometheus metrics and OpenTelemetry spans are
// recorded when a collector and tracer are configured.
package engine
