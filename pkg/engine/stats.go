package engine

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Statistics aggregates the recent validations of one entity type.
type Statistics struct {
	Samples           int           `json:"samples"`
	ValidRate         float64       `json:"valid_rate"`
	AvgTotal          time.Duration `json:"avg_total"`
	MaxTotal          time.Duration `json:"max_total"`
	P95Total          time.Duration `json:"p95_total"`
	AvgValidation     time.Duration `json:"avg_validation"`
	AvgSanitization   time.Duration `json:"avg_sanitization"`
	AvgRuleExecutions float64       `json:"avg_rule_executions"`
}

type sample struct {
	valid          bool
	total          time.Duration
	validation     time.Duration
	sanitization   time.Duration
	ruleExecutions int
}

// statsWindow keeps the most recent samples per entity type.
type statsWindow struct {
	mu      sync.Mutex
	size    int
	samples map[string][]sample
}

func newStatsWindow(size int) *statsWindow {
	return &statsWindow{size: size, samples: make(map[string][]sample)}
}

func (w *statsWindow) add(entityType string, s sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ss := append(w.samples[entityType], s)
	if len(ss) > w.size {
		n := copy(ss, ss[len(ss)-w.size:])
		ss = ss[:n]
	}
	w.samples[entityType] = ss
}

func (w *statsWindow) snapshot() map[string][]sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string][]sample, len(w.samples))
	for k, ss := range w.samples {
		out[k] = slices.Clone(ss)
	}
	return out
}

// PerformanceStatistics returns statistics over the last
// Config.MetricsWindow validations of each entity type. Cache hits are not
// counted.
func (e *Engine) PerformanceStatistics() map[string]Statistics {
	snap := e.stats.snapshot()
	out := make(map[string]Statistics, len(snap))
	for entityType, ss := range snap {
		out[entityType] = aggregate(ss)
	}
	return out
}

func aggregate(ss []sample) Statistics {
	st := Statistics{Samples: len(ss)}
	if len(ss) == 0 {
		return st
	}

	var valid, rules int
	var total, validation, sanitization time.Duration
	totals := make([]time.Duration, len(ss))
	for i, s := range ss {
		if s.valid {
			valid++
		}
		rules += s.ruleExecutions
		total += s.total
		validation += s.validation
		sanitization += s.sanitization
		totals[i] = s.total
	}
	slices.Sort(totals)

	n := len(ss)
	st.ValidRate = float64(valid) / float64(n)
	st.AvgTotal = total / time.Duration(n)
	st.MaxTotal = totals[n-1]
	st.P95Total = totals[int(math.Ceil(0.95*float64(n)))-1]
	st.AvgValidation = validation / time.Duration(n)
	st.AvgSanitization = sanitization / time.Duration(n)
	st.AvgRuleExecutions = float64(rules) / float64(n)
	return st
}
