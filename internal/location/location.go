package location

import (
	"context"
	"fmt"
	"strings"

	"tierwatch/internal/entity"
	"tierwatch/internal/services"
)

// ComponentLocator reports where components are registered at a location.
type ComponentLocator interface {
	// ComponentLocations maps every id registered at locationID to its
	// resource identifier. Absent components are missing from the map.
	ComponentLocations(ctx context.Context, locationID string, ids []string) (map[string]string, error)
}

// Location is the central storage location paths are resolved against.
type Location struct {
	ID        string
	Name      string
	Structure Structure
	Accessor  Accessor
	Locator   ComponentLocator
}

// New returns a location with the given id, structure, accessor, and locator.
func New(id string, structure Structure, accessor Accessor, locator ComponentLocator) *Location {
	return &Location{ID: id, Structure: structure, Accessor: accessor, Locator: locator}
}

// Separator returns the logical path separator.
func (l *Location) Separator() string {
	return l.Structure.PathSeparator()
}

// SanitizeSegment applies the structure's sanitization rule.
func (l *Location) SanitizeSegment(segment string) string {
	return l.Structure.Sanitize(segment)
}

// SegmentsPath maps sanitized path segments to an absolute path through the
// accessor. Segments are joined with "/" directly, so a separator character
// inside a name never splits it.
func (l *Location) SegmentsPath(segments []string) (string, error) {
	for _, segment := range segments {
		if segment == "" || strings.ContainsAny(segment, `/\`) {
			return "", services.Wrap(services.ErrValidation, "location", "segments path",
				fmt.Sprintf("invalid path segment %q", segment), nil)
		}
	}
	return l.Accessor.FilesystemPath(strings.Join(segments, "/"))
}

// ComponentPath returns the absolute path of a component registered at this
// location.
func (l *Location) ComponentPath(ctx context.Context, component entity.Component) (string, error) {
	if l.Locator == nil {
		return "", services.Wrap(services.ErrConfiguration, "location", "component path", "no component locator", nil)
	}
	found, err := l.Locator.ComponentLocations(ctx, l.ID, []string{component.ID})
	if err != nil {
		return "", err
	}
	identifier, ok := found[component.ID]
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "location", "component path",
			fmt.Sprintf("component %s is not registered at location %s", component.ID, l.ID), nil)
	}
	return l.Accessor.FilesystemPath(identifier)
}

// Availabilities returns, for each component in order, the fraction of its
// data present at this location. A plain component is 1 when registered and 0
// otherwise; a container reports the fraction of its members registered. One
// locator call covers all components and members.
func (l *Location) Availabilities(ctx context.Context, components []entity.Component) ([]float64, error) {
	out := make([]float64, len(components))
	if len(components) == 0 {
		return out, nil
	}
	if l.Locator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "location", "availabilities", "no component locator", nil)
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(components))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, c := range components {
		add(c.ID)
		for _, m := range c.Members {
			add(m)
		}
	}

	found, err := l.Locator.ComponentLocations(ctx, l.ID, ids)
	if err != nil {
		return nil, err
	}
	for i, c := range components {
		if !c.IsContainer() {
			if _, ok := found[c.ID]; ok {
				out[i] = 1
			}
			continue
		}
		present := 0
		for _, m := range c.Members {
			if _, ok := found[m]; ok {
				present++
			}
		}
		out[i] = float64(present) / float64(len(c.Members))
	}
	return out, nil
}
