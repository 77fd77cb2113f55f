package services

import "context"

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	entityKindKey    contextKey = "entity_kind"
	entityIDKey      contextKey = "entity_id"
)

// WithCorrelationID annotates context with the notification correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEntity annotates context with the entity currently being reconciled.
func WithEntity(ctx context.Context, kind, id string) context.Context {
	if kind != "" {
		ctx = context.WithValue(ctx, entityKindKey, kind)
	}
	if id != "" {
		ctx = context.WithValue(ctx, entityIDKey, id)
	}
	return ctx
}

// EntityFromContext returns the entity kind and id if present.
func EntityFromContext(ctx context.Context) (kind, id string, ok bool) {
	kind, _ = ctx.Value(entityKindKey).(string)
	id, _ = ctx.Value(entityIDKey).(string)
	return kind, id, kind != "" || id != ""
}
