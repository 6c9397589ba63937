// Package app wires a RecordGuard instance from configuration.
//
// New builds every component from a config.Config and connects them: one
// schema registry and one audit log are shared by the engine and its
// validators, audit entries flow to metrics and, when enabled, to SQLite
// behind a circuit breaker, and readiness checks cover the registry and
// the audit sink. Before any component is built, ${secret:name} references
// in the encryption key and API keys are replaced in cfg.
//
//	a, err := app.New(cfg, app.WithVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer a.Close(context.Background())
//	if err := a.Start(ctx); err != nil {
//	    return err
//	}
//	result, err := a.Engine.Validate(ctx, record, vctx)
//
// Start runs the background work (cache sweeps, audit pruning, schema
// directory watching); commands that validate once and exit may skip it.
package app
