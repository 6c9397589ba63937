// Package metrics provides Prometheus metrics for RecordGuard.
//
// # Metrics
//
//   - Validation: validations by outcome, total and per-stage durations,
//     findings by code, and batch sizes
//   - Cache: result cache hits, misses and size
//   - Audit: appended entries, in-memory evictions and durable sink errors
//
// Entity types beyond Config.MaxCardinality are recorded under "other".
//
// # Usage
//
//	collector := metrics.NewCollector(metrics.DefaultConfig(), nil)
//	collector.RecordValidation("user", "invalid", 2*time.Millisecond)
//	collector.RecordFinding("user", "error", "SQL_INJECTION_DETECTED")
//	http.Handle("/metrics", collector.Handler())
//
// Useful queries:
//
//	sum by (code) (rate(recordguard_validation_findings_total{kind="error"}[5m]))
//	histogram_quantile(0.99, sum by (le, stage) (rate(recordguard_validation_stage_duration_seconds_bucket[5m])))
package metrics
