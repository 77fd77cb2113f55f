package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tierwatch/internal/services"
)

// HierarchyResolver resolves hierarchical entities (tasks, shots, folders)
// through their ancestor chain.
type HierarchyResolver struct {
	Store    EntityStore
	Location Location
}

// NewHierarchyResolver wires a resolver over store and location.
func NewHierarchyResolver(store EntityStore, location Location) *HierarchyResolver {
	return &HierarchyResolver{Store: store, Location: location}
}

// Resolve returns the absolute path of the entity's parent directory at the
// location. An empty chain or a missing project is an error.
func (r *HierarchyResolver) Resolve(ctx context.Context, kind, id string) (string, error) {
	segments, err := r.Segments(ctx, kind, id)
	if err != nil {
		return "", err
	}
	path, err := r.Location.SegmentsPath(segments)
	if err != nil {
		return "", services.Wrap(services.ErrUnresolvable, "resolve", "filesystem path",
			strings.Join(segments, r.Location.Separator()), err)
	}
	return path, nil
}

// LogicalPath returns the sanitized segments joined with the location's
// separator, before mapping to the filesystem.
func (r *HierarchyResolver) LogicalPath(ctx context.Context, kind, id string) (string, error) {
	segments, err := r.Segments(ctx, kind, id)
	if err != nil {
		return "", err
	}
	return strings.Join(segments, r.Location.Separator()), nil
}

// Segments returns the sanitized path segments: the project name followed by
// every ancestor strictly between the project and the entity itself.
func (r *HierarchyResolver) Segments(ctx context.Context, kind, id string) ([]string, error) {
	if r == nil || r.Store == nil || r.Location == nil {
		return nil, services.Wrap(services.ErrConfiguration, "resolve", "hierarchy", "resolver not configured", nil)
	}
	chain, err := r.Store.LinkChain(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, services.Wrap(services.ErrUnresolvable, "resolve", "hierarchy",
			fmt.Sprintf("%s %s has an empty link chain", kind, id), nil)
	}

	project, err := r.Store.Project(ctx, chain[0].ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// A missing project fails the change instead of skipping it.
			return nil, services.Wrap(services.ErrUnresolvable, "resolve", "hierarchy",
				fmt.Sprintf("could not find project %s for %s %s", chain[0].ID, kind, id), nil)
		}
		return nil, err
	}

	names := make([]string, 0, len(chain))
	names = append(names, project.Name)
	if len(chain) > 2 {
		for _, link := range chain[1 : len(chain)-1] {
			names = append(names, link.Name)
		}
	}

	segments := make([]string, 0, len(names))
	for _, name := range names {
		segment := r.Location.SanitizeSegment(name)
		if segment == "" {
			return nil, services.Wrap(services.ErrUnresolvable, "resolve", "hierarchy",
				fmt.Sprintf("name %q has no filesystem-safe characters", name), nil)
		}
		segments = append(segments, segment)
	}
	return segments, nil
}
