// Package telemetry groups RecordGuard's observability packages.
//
//   - logging: slog handler with PII redaction and validation ids
//   - metrics: Prometheus collector for validations, cache and audit
//   - tracing: OpenTelemetry spans per validation and stage
//   - health: liveness and readiness probes for the HTTP service
//
// Log attributes pass through the redactor before reaching the output:
//
//   - Emails: ada@example.com → ***@example.com
//   - SSN: 123-45-6789 → ***-**-****
//   - IP addresses: 192.168.1.1 → 192.*.*.*
//   - Secret keys (password, token, encryption_key): masked entirely
package telemetry
