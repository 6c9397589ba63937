package logging

import (
	"context"
)

type contextKey string

const (
	// ValidationIDKey is the context key for validation ids.
	ValidationIDKey contextKey = "validation_id"

	// ActorKey is the context key for the acting user.
	ActorKey contextKey = "actor"
)

// WithValidationID adds a validation id to the context.
func WithValidationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ValidationIDKey, id)
}

// GetValidationID retrieves the validation id from the context.
func GetValidationID(ctx context.Context) string {
	if id, ok := ctx.Value(ValidationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithActor adds the acting user to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the acting user from the context.
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(ActorKey).(string); ok {
		return actor
	}
	return ""
}

// contextAttrs returns the logging attributes stored in ctx.
func contextAttrs(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var attrs []any
	if id := GetValidationID(ctx); id != "" {
		attrs = append(attrs, string(ValidationIDKey), id)
	}
	if actor := GetActor(ctx); actor != "" {
		attrs = append(attrs, string(ActorKey), actor)
	}
	return attrs
}
