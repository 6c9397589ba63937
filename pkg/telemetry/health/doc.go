// Package health serves liveness, readiness and version probes for the
// recordguard HTTP service.
//
// Readiness runs every registered check concurrently with a per-check
// timeout. The server registers a check for the schema registry and, when
// configured, the durable audit sink.
//
//	checker := health.New(2 * time.Second)
//	checker.Register("schemas", func(ctx context.Context) error { ... })
//	checker.Mount(mux, health.NewVersionInfo(version, commit, buildTime))
package health
