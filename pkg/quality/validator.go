package quality

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/validation"
)

// SchemaSource resolves entity schemas. *schema.Registry implements it.
type SchemaSource interface {
	Get(entityType, version string) (*schema.EntitySchema, bool)
}

// Option configures a Validator.
type Option func(*Validator)

// WithUniquenessOracle scores uniqueness with oracle instead of
// DefaultUniqueness.
func WithUniquenessOracle(oracle UniquenessOracle) Option {
	return func(v *Validator) { v.oracle = oracle }
}

// WithSchemas counts the required fields of a record's schema as expected
// fields when scoring completeness.
func WithSchemas(s SchemaSource) Option {
	return func(v *Validator) { v.schemas = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator is the quality stage. It is safe for concurrent use.
type Validator struct {
	mu       sync.RWMutex
	profiles map[string]*Profile

	config  *Config
	oracle  UniquenessOracle
	schemas SchemaSource
	logger  *slog.Logger
	now     func() time.Time
}

// NewValidator creates a quality Validator. A nil config uses DefaultConfig.
func NewValidator(config *Config, logger *slog.Logger, opts ...Option) (*Validator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{
		profiles: make(map[string]*Profile),
		config:   config,
		oracle:   DefaultUniqueness,
		logger:   logger.With("component", "quality"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// AddProfile registers the profile of an entity type.
func (v *Validator) AddProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.profiles[p.EntityType]; ok {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.EntityType)
	}
	v.profiles[p.EntityType] = p.clone()
	v.logger.Debug("quality profile added", "entity_type", p.EntityType)
	return nil
}

// Profile returns the profile applied to entityType: the registered one or
// DefaultProfile.
func (v *Validator) Profile(entityType string) Profile {
	v.mu.RLock()
	p, ok := v.profiles[entityType]
	v.mu.RUnlock()
	if ok {
		return *p.clone()
	}
	d := DefaultProfile()
	d.EntityType = entityType
	return d
}

// Assess scores a record without judging it.
func (v *Validator) Assess(ctx context.Context, entityType string, record validation.Record) (Metrics, error) {
	m, _, err := v.assess(ctx, entityType, record, v.oracle)
	return m, err
}

// assess scores record. A failing oracle is not fatal: uniqueness falls back
// to DefaultUniqueness and the error is returned as oracleErr.
func (v *Validator) assess(ctx context.Context, entityType string, record validation.Record, oracle UniquenessOracle) (m Metrics, oracleErr error, err error) {
	if err := ctx.Err(); err != nil {
		return Metrics{}, nil, err
	}
	p := v.Profile(entityType)
	expected := append([]string(nil), p.ExpectedFields...)
	if v.schemas != nil {
		if s, ok := v.schemas.Get(entityType, ""); ok {
			expected = append(expected, s.RequiredFields()...)
		}
	}

	r := unescaped(record)
	m = Metrics{
		Completeness: completeness(r, expected),
		Accuracy:     accuracy(r),
		Consistency:  consistency(r, v.config.ConsistencyPenalty),
		Validity:     validity(r),
		Timeliness:   timeliness(r, v.now().UTC(), v.config),
	}
	u, oerr := oracle.Uniqueness(ctx, entityType, r)
	if oerr != nil {
		u = float64(DefaultUniqueness)
		oracleErr = oerr
	}
	m.Uniqueness = round(max(0, min(100, u)))
	m.weigh(p.Weights)
	return m, oracleErr, nil
}

// Validate scores the record and compares every dimension with the
// profile's threshold. A score below ErrorRatio of its threshold is an
// error; a score below the threshold is a warning. The metrics are stored
// in the result metadata under "quality".
func (v *Validator) Validate(ctx context.Context, record validation.Record, vctx *validation.Context) (result *validation.Result, err error) {
	if vctx == nil {
		return nil, fmt.Errorf("%w: nil context", validation.ErrInvalidContext)
	}
	defer func() {
		if rec := recover(); rec != nil {
			v.logger.Error("quality validation panicked", "entity_type", vctx.EntityType, "panic", rec)
			result = nil
			err = fmt.Errorf("quality assessment of %s: %w", vctx.EntityType, validation.Recovered(rec))
		}
	}()

	m, oracleErr, err := v.assess(ctx, vctx.EntityType, record, v.oracle)
	if err != nil {
		return nil, err
	}
	result = validation.NewResult(vctx.EntityType)
	if oracleErr != nil {
		v.logger.Warn("uniqueness oracle failed", "entity_type", vctx.EntityType, "error", oracleErr)
		result.AddWarning(validation.Warning{
			Code:    validation.CodeQualityWarning,
			Message: "uniqueness could not be determined: " + oracleErr.Error(),
		})
	}

	p := v.Profile(vctx.EntityType)
	for _, d := range slices.Concat(Dimensions, []Dimension{Overall}) {
		threshold := p.Thresholds[d]
		score := m.Score(d)
		if threshold <= 0 || score >= threshold {
			continue
		}
		if score < threshold*v.config.ErrorRatio {
			result.AddError(validation.Error{
				Field:    string(d),
				Code:     validation.CodeQualityBelowThreshold,
				Message:  fmt.Sprintf("%s score %.2f is far below threshold %.0f", d, score, threshold),
				Value:    score,
				Severity: validation.SeverityMedium,
				Category: validation.CategoryData,
				Context:  map[string]any{"threshold": threshold},
			})
			continue
		}
		result.AddWarning(validation.Warning{
			Field:          string(d),
			Code:           validation.CodeQualityWarning,
			Message:        fmt.Sprintf("%s score %.2f is below threshold %.0f", d, score, threshold),
			Value:          score,
			Recommendation: recommendation(d),
		})
	}
	result.Metadata.Extra = map[string]any{"quality": m}
	return result, nil
}

func recommendation(d Dimension) string {
	switch d {
	case Completeness:
		return "populate missing and empty fields"
	case Accuracy:
		return "correct malformed email, phone, URL and date values"
	case Consistency:
		return "normalize formatting of emails, phone numbers, dates and names"
	case Validity:
		return "check identifiers, statuses and numeric ranges"
	case Uniqueness:
		return "merge or remove duplicate records"
	case Timeliness:
		return "review and refresh stale records"
	}
	return "review the record's overall data quality"
}
