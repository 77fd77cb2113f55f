package resolve

import (
	"context"

	"tierwatch/internal/entity"
)

// EntityStore is the record query surface the resolvers depend on.
// Implementations return an error wrapping services.ErrNotFound when the
// entity does not exist or is not accessible.
type EntityStore interface {
	LinkChain(ctx context.Context, kind, id string) ([]entity.Link, error)
	Project(ctx context.Context, id string) (entity.Entity, error)
	Components(ctx context.Context, kind, id string) ([]entity.Component, error)
}

// Location abstracts the storage location paths are resolved against.
type Location interface {
	Separator() string
	SanitizeSegment(segment string) string
	// SegmentsPath maps sanitized segments to an absolute path.
	SegmentsPath(segments []string) (string, error)
	ComponentPath(ctx context.Context, component entity.Component) (string, error)
	// Availabilities returns one value in [0, 1] per component, in input order.
	Availabilities(ctx context.Context, components []entity.Component) ([]float64, error)
}
