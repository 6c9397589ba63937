package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recordguard-hq/recordguard/pkg/cache"
	"recordguard-hq/recordguard/pkg/rules"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/telemetry/logging"
	"recordguard-hq/recordguard/pkg/telemetry/tracing"
	"recordguard-hq/recordguard/pkg/validation"
)

const resultCacheName = "result"

// Validate runs record through the pipeline and returns the merged result.
//
// Findings never produce an error: an invalid record yields a result with
// errors. An error is returned for an invalid context, cancellation, or an
// unrecoverable stage failure (*validation.SanitizationError,
// *validation.SecurityViolationError, *validation.ComplianceViolationError
// or a wrapped *validation.PanicError). In strict mode an invalid result is
// returned together with a *validation.ValidationFailedError.
func (e *Engine) Validate(ctx context.Context, record validation.Record, vctx *validation.Context) (*validation.Result, error) {
	if err := checkContext(vctx); err != nil {
		return nil, err
	}

	result, err := e.cached(ctx, record, vctx)
	if err != nil {
		return nil, err
	}
	if e.config.StrictMode && !result.Valid() {
		return result, &validation.ValidationFailedError{
			EntityType: vctx.EntityType,
			EntityID:   vctx.EntityID,
			Errors:     result.Errors,
			Warnings:   result.Warnings,
		}
	}
	return result, nil
}

func checkContext(vctx *validation.Context) error {
	if vctx == nil {
		return fmt.Errorf("%w: nil context", validation.ErrInvalidContext)
	}
	if vctx.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", validation.ErrInvalidContext)
	}
	if !vctx.Operation.Valid() {
		return fmt.Errorf("%w: unknown operation %q", validation.ErrInvalidContext, vctx.Operation)
	}
	return nil
}

// cached serves results from the cache when one is configured. Cache hits
// bypass the pipeline, so they emit no lifecycle events. Security and
// compliance audit every call, so results are never cached while either
// stage is enabled.
func (e *Engine) cached(ctx context.Context, record validation.Record, vctx *validation.Context) (*validation.Result, error) {
	if !e.cacheable() {
		return e.run(ctx, record, vctx)
	}
	key, err := cache.Key(record, vctx)
	if err != nil {
		e.logger.WarnContext(ctx, "result not cacheable", "entity_type", vctx.EntityType, "error", err)
		return e.run(ctx, record, vctx)
	}

	result, hit, err := e.cache.GetOrLoad(ctx, key, func(ctx context.Context) (*validation.Result, error) {
		return e.run(ctx, record, vctx)
	})
	if hit {
		e.collector.RecordCacheHit(resultCacheName)
	} else {
		e.collector.RecordCacheMiss(resultCacheName)
	}
	e.collector.UpdateCacheSize(resultCacheName, e.cache.Len())
	return result, err
}

func (e *Engine) cacheable() bool {
	return e.cache != nil && !e.config.enabled(StageSecurity) && !e.config.enabled(StageCompliance)
}

// run executes one validation and records its outcome.
func (e *Engine) run(ctx context.Context, record validation.Record, vctx *validation.Context) (*validation.Result, error) {
	start := time.Now()
	id := uuid.NewString()
	ctx = logging.WithValidationID(ctx, id)
	ctx = logging.WithActor(ctx, vctx.Actor())

	ctx, span := e.tracer.Start(ctx, "engine.Validate",
		trace.WithAttributes(tracing.ContextAttributes(id, vctx)...))
	defer span.End()

	e.emit(ctx, newEvent(EventStarted, id, vctx, e.now()))

	result, err := e.pipeline(ctx, record, vctx, id)
	elapsed := time.Since(start)

	if err != nil {
		tracing.SetStatus(span, err)
		e.collector.RecordValidation(vctx.EntityType, "failed", elapsed)
		e.logger.ErrorContext(ctx, "validation failed",
			"entity_type", vctx.EntityType,
			"entity_id", vctx.EntityID,
			"operation", vctx.Operation,
			"error", err)

		ev := newEvent(EventFailed, id, vctx, e.now())
		ev.Duration = elapsed
		ev.Err = err
		e.emit(ctx, ev)
		return nil, err
	}

	perf := result.Metadata.Performance
	perf.Total = elapsed
	if budget := e.config.MaxValidationTime; budget > 0 && elapsed > budget {
		result.AddWarning(validation.Warning{
			Code:           validation.CodePerformanceWarning,
			Message:        fmt.Sprintf("validation took %s, exceeding the %s budget", elapsed.Round(time.Microsecond), budget),
			Value:          elapsed.Milliseconds(),
			Recommendation: "review rule complexity or raise max_validation_time",
		})
	}

	e.stats.add(vctx.EntityType, sample{
		valid:          result.Valid(),
		total:          perf.Total,
		validation:     perf.Validation,
		sanitization:   perf.Sanitization,
		ruleExecutions: perf.RuleExecutions,
	})
	e.recordFindings(vctx.EntityType, result)

	tracing.SetResultAttributes(span, result)
	tracing.SetStatus(span, nil)

	e.logger.DebugContext(ctx, "validation completed",
		"entity_type", vctx.EntityType,
		"valid", result.Valid(),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"duration", elapsed)

	ev := newEvent(EventCompleted, id, vctx, e.now())
	ev.Duration = elapsed
	ev.Valid = result.Valid()
	ev.Errors = len(result.Errors)
	ev.Warnings = len(result.Warnings)
	e.emit(ctx, ev)
	return result, nil
}

func (e *Engine) recordFindings(entityType string, result *validation.Result) {
	outcome := "valid"
	if !result.Valid() {
		outcome = "invalid"
	}
	e.collector.RecordValidation(entityType, outcome, result.Metadata.Performance.Total)
	for _, f := range result.Errors {
		e.collector.RecordFinding(entityType, "error", f.Code)
	}
	for _, w := range result.Warnings {
		e.collector.RecordFinding(entityType, "warning", w.Code)
	}
}

// pipeline runs the stages in order. A panic anywhere in the engine's own
// code is returned as a wrapped *validation.PanicError.
func (e *Engine) pipeline(ctx context.Context, record validation.Record, vctx *validation.Context, id string) (result *validation.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.ErrorContext(ctx, "validation panicked", "entity_type", vctx.EntityType, "panic", rec)
			result = nil
			err = fmt.Errorf("validation of %s: %w", vctx.EntityType, validation.Recovered(rec))
		}
	}()

	s, err := e.registry.MustGet(vctx.EntityType, "")
	if err != nil {
		return nil, fmt.Errorf("validation of %s: %w", vctx.EntityType, err)
	}

	result = validation.NewResult(vctx.EntityType)
	result.Metadata.ValidationID = id
	result.Metadata.Timestamp = e.now().UTC()
	result.Metadata.Performance = &validation.Performance{}

	for _, stage := range Stages {
		if !e.config.enabled(stage) {
			continue
		}
		if stage == StageSanitize && result.HasCritical() {
			e.logger.DebugContext(ctx, "sanitization skipped after critical error", "entity_type", vctx.EntityType)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validation of %s cancelled before %s: %w", vctx.EntityType, stage, err)
		}
		if err := e.runStage(ctx, stage, s, record, vctx, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// runStage runs one stage against the current data and folds its result
// into result.
func (e *Engine) runStage(ctx context.Context, stage Stage, s *schema.EntitySchema, record validation.Record, vctx *validation.Context, result *validation.Result) error {
	ctx, span := e.tracer.Start(ctx, "engine.stage."+string(stage),
		trace.WithAttributes(attribute.String(tracing.AttrStage, string(stage))))
	defer span.End()

	data := result.Data(record)
	start := time.Now()
	r, err := e.stage(ctx, stage, s, data, vctx)
	elapsed := time.Since(start)
	e.collector.RecordStage(vctx.EntityType, string(stage), elapsed)

	if err != nil {
		tracing.SetStatus(span, err)
		return err
	}
	tracing.SetResultAttributes(span, r)

	perf := result.Metadata.Performance
	if stage == StageSanitize {
		perf.Sanitization += elapsed
	} else {
		perf.Validation += elapsed
	}
	merge(result, r)
	return nil
}

func (e *Engine) stage(ctx context.Context, stage Stage, s *schema.EntitySchema, data validation.Record, vctx *validation.Context) (*validation.Result, error) {
	switch stage {
	case StageSchema:
		return schema.Check(s, data, vctx.Operation), nil
	case StageSanitize:
		r, err := e.sanitizer.ValidateAndSanitize(data, vctx.EntityType)
		if err != nil {
			var se *validation.SanitizationError
			if errors.As(err, &se) {
				return nil, err
			}
			return nil, &validation.SanitizationError{EntityType: vctx.EntityType, Cause: err}
		}
		return r, nil
	case StageBusiness:
		return e.businessRules(ctx, s, data, vctx), nil
	case StageSecurity:
		return e.security.Validate(ctx, data, vctx)
	case StageCompliance:
		return e.compliance.Validate(ctx, data, vctx)
	case StageQuality:
		return e.quality.Validate(ctx, data, vctx)
	}
	return nil, fmt.Errorf("unknown stage %q", stage)
}

func (e *Engine) businessRules(ctx context.Context, s *schema.EntitySchema, data validation.Record, vctx *validation.Context) *validation.Result {
	r := validation.NewResult(vctx.EntityType)
	if len(s.BusinessRules) == 0 {
		return r
	}
	env := &rules.Env{Record: data, Context: vctx, Now: e.now().UTC()}
	outcomes := rules.Evaluate(ctx, s.BusinessRules, env)
	rules.Apply(r, outcomes, validation.CategoryBusiness, validation.CodeBusinessRuleFailed)
	r.Metadata.Performance = &validation.Performance{RuleExecutions: len(outcomes)}
	return r
}

// merge folds a stage result into the running result. Each stage works on
// the data produced so far, so a stage's sanitized data supersedes the
// running copy.
func merge(result, r *validation.Result) {
	if r == nil {
		return
	}
	result.Merge(r)
	if r.SanitizedData != nil {
		result.SanitizedData = r.SanitizedData
	}
	if r.Metadata == nil {
		return
	}
	if r.Metadata.Performance != nil {
		result.Metadata.Performance.RuleExecutions += r.Metadata.Performance.RuleExecutions
	}
	if len(r.Metadata.Extra) > 0 {
		if result.Metadata.Extra == nil {
			result.Metadata.Extra = make(map[string]any, len(r.Metadata.Extra))
		}
		maps.Copy(result.Metadata.Extra, r.Metadata.Extra)
	}
}
