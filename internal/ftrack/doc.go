// Package ftrack is a minimal client for the ftrack REST API (POST /api).
//
// It implements the record lookups the resolvers need: the ancestor link
// chain of an entity, project records, the components of a version (with
// container members expanded), and the component locations registered at a
// storage location. Identifiers are validated before they are embedded in
// query expressions. Empty query results map to services.ErrNotFound; transport
// failures and API exceptions map to services.ErrExternalService.
package ftrack
