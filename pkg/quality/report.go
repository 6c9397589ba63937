package quality

import (
	"context"
	"time"

	"recordguard-hq/recordguard/pkg/validation"
)

// Grade bands of the overall score.
const (
	GradeExcellent = "excellent"
	GradeGood      = "good"
	GradeFair      = "fair"
	GradePoor      = "poor"
)

// Grade returns the band of an overall score.
func Grade(overall float64) string {
	switch {
	case overall >= 90:
		return GradeExcellent
	case overall >= 75:
		return GradeGood
	case overall >= 60:
		return GradeFair
	}
	return GradePoor
}

// Issue summarizes a dimension that falls short across a batch.
type Issue struct {
	Dimension Dimension `json:"dimension"`

	// Affected is the number of records scoring below the threshold.
	Affected  int     `json:"affected"`
	Average   float64 `json:"average"`
	Threshold float64 `json:"threshold"`
}

// Report is the quality summary of a batch of records.
type Report struct {
	EntityType      string         `json:"entity_type"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Records         int            `json:"records"`
	Averages        Metrics        `json:"averages"`
	Distribution    map[string]int `json:"distribution"`
	Issues          []Issue        `json:"issues,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// GenerateReport scores every record and averages the scores. Uniqueness is
// scored within the batch.
func (v *Validator) GenerateReport(ctx context.Context, records []validation.Record, entityType string) (*Report, error) {
	report := &Report{
		EntityType:  entityType,
		GeneratedAt: v.now().UTC(),
		Records:     len(records),
		Distribution: map[string]int{
			GradeExcellent: 0,
			GradeGood:      0,
			GradeFair:      0,
			GradePoor:      0,
		},
	}
	if len(records) == 0 {
		return report, nil
	}

	p := v.Profile(entityType)
	oracle := NewBatchUniqueness(records)
	sums := make(map[Dimension]float64)
	below := make(map[Dimension]int)
	for _, r := range records {
		m, _, err := v.assess(ctx, entityType, r, oracle)
		if err != nil {
			return nil, err
		}
		report.Distribution[Grade(m.Overall)]++
		for _, d := range Dimensions {
			sums[d] += m.Score(d)
			if t := p.Thresholds[d]; t > 0 && m.Score(d) < t {
				below[d]++
			}
		}
	}

	n := float64(len(records))
	for _, d := range Dimensions {
		report.Averages.set(d, round(sums[d]/n))
	}
	report.Averages.weigh(p.Weights)

	for _, d := range Dimensions {
		if below[d] == 0 {
			continue
		}
		report.Issues = append(report.Issues, Issue{
			Dimension: d,
			Affected:  below[d],
			Average:   report.Averages.Score(d),
			Threshold: p.Thresholds[d],
		})
		report.Recommendations = append(report.Recommendations, recommendation(d))
	}
	if t := p.Thresholds[Overall]; t > 0 && report.Averages.Overall < t {
		report.Recommendations = append(report.Recommendations, recommendation(Overall))
	}
	v.logger.Debug("quality report generated", "entity_type", entityType, "records", len(records), "overall", report.Averages.Overall)
	return report, nil
}
