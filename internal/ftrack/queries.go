package ftrack

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"tierwatch/internal/entity"
	"tierwatch/internal/services"
)

// componentChunk bounds the number of ids embedded in one "in (...)" clause.
const componentChunk = 100

var kindPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidateID reports whether id is a well-formed ftrack identifier.
func ValidateID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return services.Wrap(services.ErrValidation, "ftrack", "validate id", fmt.Sprintf("%q", id), err)
	}
	return nil
}

// ValidateKind reports whether kind can be used as an entity type in a query.
func ValidateKind(kind string) error {
	if !kindPattern.MatchString(kind) {
		return services.Wrap(services.ErrValidation, "ftrack", "validate kind", fmt.Sprintf("%q", kind), nil)
	}
	return nil
}

func validateRef(kind, id string) error {
	if err := ValidateKind(kind); err != nil {
		return err
	}
	return ValidateID(id)
}

func quote(id string) string {
	return `"` + strings.TrimSpace(id) + `"`
}

func notFound(op, kind, id string) error {
	return services.Wrap(services.ErrNotFound, "ftrack", op, fmt.Sprintf("%s %s", kind, id), nil)
}

// LinkChain returns the ancestor chain of an entity, project first.
func (c *Client) LinkChain(ctx context.Context, kind, id string) ([]entity.Link, error) {
	if err := validateRef(kind, id); err != nil {
		return nil, err
	}
	data, err := c.Query(ctx, fmt.Sprintf("select link from %s where id is %s", kind, quote(id)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, notFound("link chain", kind, id)
	}
	var record struct {
		Link []entity.Link `json:"link"`
	}
	if err := json.Unmarshal(data[0], &record); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode link", id, err)
	}
	return record.Link, nil
}

// Project returns the project record with the given id.
func (c *Client) Project(ctx context.Context, id string) (entity.Entity, error) {
	return c.named(ctx, "Project", id)
}

// Location returns the location record with the given id.
func (c *Client) Location(ctx context.Context, id string) (entity.Entity, error) {
	return c.named(ctx, "Location", id)
}

func (c *Client) named(ctx context.Context, kind, id string) (entity.Entity, error) {
	if err := ValidateID(id); err != nil {
		return entity.Entity{}, err
	}
	data, err := c.Query(ctx, fmt.Sprintf("select id, name from %s where id is %s", kind, quote(id)))
	if err != nil {
		return entity.Entity{}, err
	}
	if len(data) == 0 {
		return entity.Entity{}, notFound("lookup", kind, id)
	}
	var record struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data[0], &record); err != nil {
		return entity.Entity{}, services.Wrap(services.ErrExternalService, "ftrack", "decode "+strings.ToLower(kind), id, err)
	}
	return entity.Entity{Kind: kind, ID: record.ID, Name: record.Name}, nil
}

type componentRecord struct {
	EntityType string `json:"__entity_type__"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	FileType   string `json:"file_type"`
}

func (r componentRecord) isContainer() bool {
	return r.EntityType == "SequenceComponent" || r.EntityType == "ContainerComponent"
}

// Components returns the components of a version-like entity. Members of
// container components are listed on the container.
func (c *Client) Components(ctx context.Context, kind, id string) ([]entity.Component, error) {
	if err := validateRef(kind, id); err != nil {
		return nil, err
	}
	data, err := c.Query(ctx, fmt.Sprintf("select components.id, components.name, components.file_type from %s where id is %s", kind, quote(id)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, notFound("components", kind, id)
	}
	var record struct {
		Components []componentRecord `json:"components"`
	}
	if err := json.Unmarshal(data[0], &record); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode components", id, err)
	}

	components := make([]entity.Component, 0, len(record.Components))
	var containers []int
	for _, rec := range record.Components {
		components = append(components, entity.Component{ID: rec.ID, Name: rec.Name, FileType: rec.FileType})
		if rec.isContainer() {
			containers = append(containers, len(components)-1)
		}
	}
	if len(containers) == 0 {
		return components, nil
	}

	exprs := make([]string, 0, len(containers))
	for _, idx := range containers {
		exprs = append(exprs, fmt.Sprintf("select id from Component where container_id is %s", quote(components[idx].ID)))
	}
	results, err := c.queries(ctx, exprs)
	if err != nil {
		return nil, err
	}
	for i, idx := range containers {
		members := make([]string, 0, len(results[i]))
		for _, raw := range results[i] {
			var member struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &member); err != nil {
				return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode container member", components[idx].ID, err)
			}
			members = append(members, member.ID)
		}
		components[idx].Members = members
	}
	return components, nil
}

// ComponentLocations returns the resource identifier of every component in
// ids that is registered at locationID. Components absent from the location
// are missing from the map. All lookups travel in a single request.
func (c *Client) ComponentLocations(ctx context.Context, locationID string, ids []string) (map[string]string, error) {
	if err := ValidateID(locationID); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return nil, err
		}
		quoted = append(quoted, quote(id))
	}

	var exprs []string
	for start := 0; start < len(quoted); start += componentChunk {
		end := min(start+componentChunk, len(quoted))
		exprs = append(exprs, fmt.Sprintf(
			"select component_id, resource_identifier from ComponentLocation where location_id is %s and component_id in (%s)",
			quote(locationID), strings.Join(quoted[start:end], ", ")))
	}
	results, err := c.queries(ctx, exprs)
	if err != nil {
		return nil, err
	}
	for _, data := range results {
		for _, raw := range data {
			var rec struct {
				ComponentID        string `json:"component_id"`
				ResourceIdentifier string `json:"resource_identifier"`
			}
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode component location", "", err)
			}
			out[rec.ComponentID] = rec.ResourceIdentifier
		}
	}
	return out, nil
}
