package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ValidationMetrics tracks pipeline throughput and latency.
//
// Metrics:
//   - recordguard_validation_total: Validations by entity type and outcome
//   - recordguard_validation_duration_seconds: Total pipeline time
//   - recordguard_validation_stage_duration_seconds: Time per pipeline stage
//   - recordguard_validation_findings_total: Errors and warnings by code
//   - recordguard_validation_batch_size: Records per batch call
type ValidationMetrics struct {
	validationsTotal *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	findingsTotal    *prometheus.CounterVec
	batchSize        prometheus.Histogram
}

// NewValidationMetrics creates and registers validation metrics.
func NewValidationMetrics(cfg Config, registry *prometheus.Registry) *ValidationMetrics {
	vm := &ValidationMetrics{
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "total",
				Help:      "Total number of validations by outcome",
			},
			[]string{"entity_type", "outcome"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "duration_seconds",
				Help:      "Validation duration in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"entity_type"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"entity_type", "stage"},
		),

		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "findings_total",
				Help:      "Total number of validation errors and warnings by code",
			},
			[]string{"entity_type", "kind", "code"},
		),

		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_size",
				Help:      "Records per batch validation",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}

	registry.MustRegister(
		vm.validationsTotal,
		vm.duration,
		vm.stageDuration,
		vm.findingsTotal,
		vm.batchSize,
	)
	return vm
}

// RecordValidation records a completed validation.
func (vm *ValidationMetrics) RecordValidation(entityType, outcome string, duration time.Duration) {
	vm.validationsTotal.WithLabelValues(entityType, outcome).Inc()
	vm.duration.WithLabelValues(entityType).Observe(duration.Seconds())
}

// RecordStage records a stage duration.
func (vm *ValidationMetrics) RecordStage(entityType, stage string, duration time.Duration) {
	vm.stageDuration.WithLabelValues(entityType, stage).Observe(duration.Seconds())
}

// RecordFinding records one error or warning.
func (vm *ValidationMetrics) RecordFinding(entityType, kind, code string) {
	vm.findingsTotal.WithLabelValues(entityType, kind, code).Inc()
}

// RecordBatch records a batch size.
func (vm *ValidationMetrics) RecordBatch(size int) {
	vm.batchSize.Observe(float64(size))
}
