// Package server provides the HTTP API for RecordGuard.
//
// The server exposes the validation engine over JSON and manages its own
// lifecycle: start, graceful shutdown and health endpoints.
//
// # Basic Usage
//
//	eng, _ := engine.New(&cfg.Engine, logger)
//	srv, err := server.NewServer(&cfg.Server, eng,
//	    server.WithLogger(logger),
//	    server.WithHealth(checker, health.NewVersionInfo(version, commit, date)),
//	    server.WithMetrics(cfg.Telemetry.Metrics.Path, collector.Handler()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start returns after ctx is cancelled and in-flight requests have drained,
// bounded by server.shutdown_timeout.
//
// # Routes
//
//   - POST /v1/validate - Validate one record
//   - POST /v1/validate/batch - Validate records in input order
//   - GET /v1/schemas - Registered entity types and registry statistics
//   - GET /v1/schemas/{type} - Field descriptors of one schema (?version=)
//   - GET /v1/stats - Recent performance statistics per entity type
//   - GET /v1/audit/{category} - Audit entries: security, compliance or ops (?limit=)
//   - GET /health, /ready, /version - Probes (with WithHealth)
//   - GET /metrics - Prometheus metrics (with WithMetrics)
//
// A record with findings is not an HTTP error: /v1/validate answers 200
// with "valid": false. In strict mode invalid records answer 422 with the
// same body. Invalid contexts answer 400, security and compliance
// violations 403, and requests that outlive server.request_timeout 504.
//
// The security context's ip_address and user_agent are filled from the
// request when the caller leaves them empty.
//
// # Authentication, TLS and Rate Limiting
//
// With server.auth enabled every route except the probes and metrics needs
// an API key (see package auth). The key's user, roles and permissions
// replace whatever the request body claims. With server.tls enabled the
// listener serves HTTPS, and a verified client certificate supplies the
// user when no API key is in play. server.rate_limit bounds requests per
// caller and answers 429 with Retry-After.
package server
