package resolve

import (
	"context"
	"errors"
	"fmt"

	"tierwatch/internal/entity"
	"tierwatch/internal/services"
)

// ComponentPath pairs a present component with its resolved path.
type ComponentPath struct {
	Component    entity.Component
	Availability float64
	Path         string
}

// ComponentResolution is the outcome of resolving a version-like entity.
type ComponentResolution struct {
	Paths []ComponentPath
	// Skipped lists components with zero availability at the location.
	Skipped []entity.Component
	// Produced reports whether at least one path was produced.
	Produced bool
}

// PathStrings returns the resolved paths in component order.
func (r ComponentResolution) PathStrings() []string {
	out := make([]string, 0, len(r.Paths))
	for _, p := range r.Paths {
		out = append(out, p.Path)
	}
	return out
}

// ComponentResolver resolves version-like entities through their components.
type ComponentResolver struct {
	Store    EntityStore
	Location Location
}

// NewComponentResolver wires a resolver over store and location.
func NewComponentResolver(store EntityStore, location Location) *ComponentResolver {
	return &ComponentResolver{Store: store, Location: location}
}

// Resolve fetches the entity's components, queries their availability in one
// batch, and maps every component with availability above zero to its path.
// When individual path lookups fail, the resolution still carries the paths
// that succeeded and the returned error joins the failures.
func (r *ComponentResolver) Resolve(ctx context.Context, kind, id string) (ComponentResolution, error) {
	var res ComponentResolution
	if r == nil || r.Store == nil || r.Location == nil {
		return res, services.Wrap(services.ErrConfiguration, "resolve", "components", "resolver not configured", nil)
	}
	components, err := r.Store.Components(ctx, kind, id)
	if err != nil {
		return res, err
	}
	if len(components) == 0 {
		return res, nil
	}

	availabilities, err := r.Location.Availabilities(ctx, components)
	if err != nil {
		return res, err
	}
	if len(availabilities) != len(components) {
		return res, services.Wrap(services.ErrExternalService, "resolve", "availabilities",
			fmt.Sprintf("got %d availabilities for %d components", len(availabilities), len(components)), nil)
	}

	var errs []error
	for i, component := range components {
		availability := availabilities[i]
		if !(availability > 0) {
			res.Skipped = append(res.Skipped, component)
			continue
		}
		path, err := r.Location.ComponentPath(ctx, component)
		if err != nil {
			errs = append(errs, services.Wrap(services.ErrUnresolvable, "resolve", "component path",
				fmt.Sprintf("component %s (%s)", component.ID, component.Name), err))
			continue
		}
		res.Paths = append(res.Paths, ComponentPath{Component: component, Availability: min(availability, 1), Path: path})
	}
	res.Produced = len(res.Paths) > 0
	return res, errors.Join(errs...)
}
