// Package tracing exports OpenTelemetry spans for validations.
//
// The engine opens one span per validation and a child span per stage.
// Spans carry the entity type, operation and outcome but never record
// values. Spans go to an OTLP gRPC collector:
//
//	tracing:
//	  enabled: true
//	  endpoint: otel-collector:4317
//	  insecure: true
//	  sampler: ratio
//	  sample_ratio: 0.1
//
// A disabled tracer hands out no-op spans.
package tracing
