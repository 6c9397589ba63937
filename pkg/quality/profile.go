package quality

import (
	"fmt"
	"maps"
	"slices"
)

// Dimension names a quality score.
type Dimension string

const (
	Completeness Dimension = "completeness"
	Accuracy     Dimension = "accuracy"
	Consistency  Dimension = "consistency"
	Validity     Dimension = "validity"
	Uniqueness   Dimension = "uniqueness"
	Timeliness   Dimension = "timeliness"
	Overall      Dimension = "overall"
)

// Dimensions are the six scored dimensions in reporting order.
var Dimensions = []Dimension{Completeness, Accuracy, Consistency, Validity, Uniqueness, Timeliness}

// Profile holds the weights and thresholds for one entity type.
type Profile struct {
	EntityType string `yaml:"entity_type"`

	// Weights of the six dimensions in the overall score. Missing
	// dimensions weigh nothing. Weights need not sum to one.
	Weights map[Dimension]float64 `yaml:"weights"`

	// Thresholds per dimension, including Overall, on the 0-100 scale.
	// A missing or zero threshold disables the check.
	Thresholds map[Dimension]float64 `yaml:"thresholds"`

	// ExpectedFields count as unpopulated when absent from a record.
	ExpectedFields []string `yaml:"expected_fields"`
}

// DefaultProfile returns the profile used for entity types without one.
func DefaultProfile() Profile {
	return Profile{
		Weights: map[Dimension]float64{
			Completeness: 0.25,
			Accuracy:     0.20,
			Consistency:  0.15,
			Validity:     0.20,
			Uniqueness:   0.10,
			Timeliness:   0.10,
		},
		Thresholds: map[Dimension]float64{
			Completeness: 50,
			Accuracy:     70,
			Consistency:  60,
			Validity:     70,
			Overall:      70,
		},
	}
}

// Validate checks the profile.
func (p *Profile) Validate() error {
	if p.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidProfile)
	}
	var total float64
	for d, w := range p.Weights {
		if !slices.Contains(Dimensions, d) {
			return fmt.Errorf("%w: unknown weighted dimension %q", ErrInvalidProfile, d)
		}
		if w < 0 {
			return fmt.Errorf("%w: weight of %s is negative", ErrInvalidProfile, d)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("%w: weights must not all be zero", ErrInvalidProfile)
	}
	for d, t := range p.Thresholds {
		if d != Overall && !slices.Contains(Dimensions, d) {
			return fmt.Errorf("%w: unknown threshold dimension %q", ErrInvalidProfile, d)
		}
		if t < 0 || t > 100 {
			return fmt.Errorf("%w: threshold of %s must be in [0, 100]", ErrInvalidProfile, d)
		}
	}
	return nil
}

func (p Profile) clone() *Profile {
	p.Weights = maps.Clone(p.Weights)
	p.Thresholds = maps.Clone(p.Thresholds)
	p.ExpectedFields = slices.Clone(p.ExpectedFields)
	return &p
}
