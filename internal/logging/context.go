package logging

import (
	"context"
	"log/slog"

	"tierwatch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID is the standardized structured logging key for notification correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEntityKind is the standardized structured logging key for the entity kind of a change.
	FieldEntityKind = "entity_kind"
	// FieldEntityID is the standardized structured logging key for the entity identifier of a change.
	FieldEntityID = "entity_id"
	// FieldPath is the standardized structured logging key for resolved filesystem paths.
	FieldPath = "path"
	// FieldEventType names the kind of event being logged (for example "change_failed").
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	if kind, id, ok := services.EntityFromContext(ctx); ok {
		if kind != "" {
			fields = append(fields, slog.String(FieldEntityKind, kind))
		}
		if id != "" {
			fields = append(fields, slog.String(FieldEntityID, id))
		}
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
