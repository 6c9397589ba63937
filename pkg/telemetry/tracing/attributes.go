package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recordguard-hq/recordguard/pkg/validation"
)

// Span attribute keys.
const (
	AttrValidationID = "recordguard.validation_id"
	AttrEntityType   = "recordguard.entity_type"
	AttrEntityID     = "recordguard.entity_id"
	AttrOperation    = "recordguard.operation"
	AttrStage        = "recordguard.stage"
	AttrValid        = "recordguard.valid"
	AttrErrors       = "recordguard.errors"
	AttrWarnings     = "recordguard.warnings"
	AttrCritical     = "recordguard.critical"
	AttrCacheHit     = "recordguard.cache.hit"
	AttrBatchSize    = "recordguard.batch.size"
)

// ContextAttributes returns the attributes describing vctx. The acting
// user is not recorded.
func ContextAttributes(validationID string, vctx *validation.Context) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrValidationID, validationID)}
	if vctx == nil {
		return attrs
	}
	attrs = append(attrs,
		attribute.String(AttrEntityType, vctx.EntityType),
		attribute.String(AttrOperation, string(vctx.Operation)),
	)
	if vctx.EntityID != "" {
		attrs = append(attrs, attribute.String(AttrEntityID, vctx.EntityID))
	}
	return attrs
}

// SetResultAttributes records the outcome of a validation on span.
func SetResultAttributes(span trace.Span, result *validation.Result) {
	if result == nil {
		return
	}
	span.SetAttributes(
		attribute.Bool(AttrValid, result.Valid()),
		attribute.Int(AttrErrors, len(result.Errors)),
		attribute.Int(AttrWarnings, len(result.Warnings)),
		attribute.Bool(AttrCritical, result.HasCritical()),
	)
}
