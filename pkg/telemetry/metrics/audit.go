package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the audit log.
//
// Metrics:
//   - recordguard_audit_entries_total: Entries appended by category
//   - recordguard_audit_dropped_total: Entries evicted from the in-memory log
//   - recordguard_audit_sink_errors_total: Failed durable sink writes
type AuditMetrics struct {
	entriesTotal    *prometheus.CounterVec
	droppedTotal    prometheus.Counter
	sinkErrorsTotal prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg Config, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "entries_total",
				Help:      "Total number of audit entries by category",
			},
			[]string{"category"},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "dropped_total",
				Help:      "Total number of audit entries evicted from the in-memory log",
			},
		),
		sinkErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "sink_errors_total",
				Help:      "Total number of failed durable audit writes",
			},
		),
	}

	registry.MustRegister(am.entriesTotal, am.droppedTotal, am.sinkErrorsTotal)
	return am
}

// RecordEntry records an appended entry.
func (am *AuditMetrics) RecordEntry(category string) {
	am.entriesTotal.WithLabelValues(category).Inc()
}

// RecordDrop records n evicted entries.
func (am *AuditMetrics) RecordDrop(n int) {
	am.droppedTotal.Add(float64(n))
}

// RecordSinkError records a failed sink write.
func (am *AuditMetrics) RecordSinkError() {
	am.sinkErrorsTotal.Inc()
}
