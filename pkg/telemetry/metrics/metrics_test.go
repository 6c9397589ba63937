package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() Config {
	return Config{
		Enabled:         true,
		Namespace:       "test",
		Subsystem:       "validation",
		DurationBuckets: []float64{0.001, 0.01, 0.1},
		MaxCardinality:  2,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"negative cardinality", Config{MaxCardinality: -1}, true},
		{"unsorted buckets", Config{DurationBuckets: []float64{1, 0.5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewCollector_Defaults(t *testing.T) {
	collector := NewCollector(Config{Enabled: true}, nil)
	if collector.Registry() == nil {
		t.Fatal("Registry() is nil")
	}
	if collector.config.Namespace != "recordguard" {
		t.Errorf("Namespace = %q, want recordguard", collector.config.Namespace)
	}
	if len(collector.config.DurationBuckets) == 0 {
		t.Error("DurationBuckets not defaulted")
	}
}

func TestCollector_RecordValidation(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordValidation("user", "valid", 2*time.Millisecond)
	collector.RecordValidation("user", "valid", 3*time.Millisecond)
	collector.RecordValidation("user", "invalid", time.Millisecond)

	if got := testutil.ToFloat64(collector.validationMetrics.validationsTotal.WithLabelValues("user", "valid")); got != 2 {
		t.Errorf("valid count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.validationMetrics.validationsTotal.WithLabelValues("user", "invalid")); got != 1 {
		t.Errorf("invalid count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.validationMetrics.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCollector_StagesAndFindings(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordStage("user", "schema", time.Millisecond)
	collector.RecordStage("user", "security", time.Millisecond)
	collector.RecordFinding("user", "error", "XSS_DETECTED")
	collector.RecordFinding("user", "error", "XSS_DETECTED")
	collector.RecordFinding("user", "warning", "PII_DETECTED")
	collector.RecordBatch(25)

	if got := testutil.CollectAndCount(collector.validationMetrics.stageDuration); got != 2 {
		t.Errorf("stage series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(collector.validationMetrics.findingsTotal.WithLabelValues("user", "error", "XSS_DETECTED")); got != 2 {
		t.Errorf("XSS findings = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(collector.validationMetrics.batchSize); got != 1 {
		t.Errorf("batch series = %d, want 1", got)
	}
}

func TestCollector_Cardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	for _, entityType := range []string{"user", "order", "invoice", "refund"} {
		collector.RecordValidation(entityType, "valid", time.Millisecond)
	}

	if got := testutil.ToFloat64(collector.validationMetrics.validationsTotal.WithLabelValues("other", "valid")); got != 2 {
		t.Errorf("other count = %v, want 2", got)
	}
	if got := collector.cardinalityLimiter.Count(); got != 2 {
		t.Errorf("cardinality = %d, want 2", got)
	}
}

func TestCollector_CacheAndAudit(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordCacheHit("results")
	collector.RecordCacheMiss("results")
	collector.RecordCacheMiss("results")
	collector.UpdateCacheSize("results", 7)
	collector.RecordAuditEntry("security")
	collector.RecordAuditDrop(3)
	collector.RecordAuditDrop(0)
	collector.RecordAuditSinkError()

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"hits", collector.cacheMetrics.hitsTotal.WithLabelValues("results"), 1},
		{"misses", collector.cacheMetrics.missesTotal.WithLabelValues("results"), 2},
		{"entries", collector.cacheMetrics.entries.WithLabelValues("results"), 7},
		{"audit entries", collector.auditMetrics.entriesTotal.WithLabelValues("security"), 1},
		{"audit dropped", collector.auditMetrics.droppedTotal, 3},
		{"sink errors", collector.auditMetrics.sinkErrorsTotal, 1},
	}
	for _, tt := range checks {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordValidation("user", "valid", time.Millisecond)
	collector.RecordCacheHit("results")

	if got := testutil.CollectAndCount(collector.validationMetrics.validationsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}

	var nilCollector *Collector
	nilCollector.RecordValidation("user", "valid", time.Millisecond)
	nilCollector.RecordAuditDrop(1)
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordValidation("user", "valid", time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_validation_total{entity_type="user",outcome="valid"} 1`) {
		t.Errorf("metrics output missing validation counter:\n%s", body)
	}
}
