// Package audit records security, compliance and pipeline events.
//
// # Ring
//
// Ring is a bounded in-memory log. Appending beyond the capacity evicts the
// oldest entries, so the ring is best-effort telemetry and not a durable
// record. Every entry is assigned a UUID and a UTC timestamp on append.
//
//	ring, _ := audit.NewRing(&audit.RingConfig{Capacity: 1000}, logger)
//	ring.Append(ctx, audit.Entry{Category: audit.CategorySecurity, Action: "validate"})
//
// # Sinks
//
// A Sink attached to the ring receives every entry after it is stored in
// memory. SQLiteSink persists entries with the pure-Go modernc.org/sqlite
// driver; BreakerSink wraps any sink with a github.com/sony/gobreaker
// circuit breaker so a failing downstream store is skipped while open.
// Sink errors are logged and never fail a validation.
//
// # Retention
//
// Pruner deletes entries by age and by count from any Store, either on
// demand or on a cron schedule (github.com/robfig/cron/v3):
//
//	pruner, _ := audit.NewPruner(&audit.PrunerConfig{
//	    RetentionDays: 30,
//	    Schedule:      "0 3 * * *",
//	}, logger, sqliteSink)
//	pruner.Start(ctx)
package audit
