package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"recordguard-hq/recordguard/pkg/telemetry/tracing"
	"recordguard-hq/recordguard/pkg/validation"
)

// Item is one record of a batch and the context it is validated in.
type Item struct {
	Record  validation.Record   `json:"record"`
	Context *validation.Context `json:"context"`
}

// ValidateBatch validates items in chunks of Config.BatchSize. Records of a
// chunk are validated concurrently; chunks run one after another. Results
// are in input order. A record whose validation fails unexpectedly gets a
// result holding a single critical VALIDATION_FAILED error, and the rest of
// the batch is unaffected. In strict mode invalid results are returned as
// they are.
func (e *Engine) ValidateBatch(ctx context.Context, items []Item) []*validation.Result {
	ctx, span := e.tracer.Start(ctx, "engine.ValidateBatch",
		trace.WithAttributes(attribute.Int(tracing.AttrBatchSize, len(items))))
	defer span.End()

	e.collector.RecordBatch(len(items))
	results := make([]*validation.Result, len(items))
	for start := 0; start < len(items); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(items))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = e.validateItem(ctx, items[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	e.logger.DebugContext(ctx, "batch validated", "items", len(items), "chunks", chunks(len(items), e.config.BatchSize))
	return results
}

func (e *Engine) validateItem(ctx context.Context, item Item) (result *validation.Result) {
	entityType := ""
	if item.Context != nil {
		entityType = item.Context.EntityType
	}
	defer func() {
		if rec := recover(); rec != nil {
			err := validation.Recovered(rec)
			e.logger.ErrorContext(ctx, "batch item panicked", "entity_type", entityType, "panic", rec)
			result = validation.FailedResult(entityType, err)
		}
	}()

	r, err := e.Validate(ctx, item.Record, item.Context)
	if err == nil {
		return r
	}
	var failed *validation.ValidationFailedError
	if errors.As(err, &failed) && r != nil {
		return r
	}
	e.logger.WarnContext(ctx, "batch item failed", "entity_type", entityType, "error", err)
	return validation.FailedResult(entityType, err)
}

func chunks(n, size int) int {
	return (n + size - 1) / size
}
