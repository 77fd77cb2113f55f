// Package entity holds the tracking-service record shapes the resolvers work
// with. Values are rebuilt for every notification and never cached.
package entity

import "strings"

// Link is one element of an entity's ancestor chain. The chain is ordered
// root project first, leaf entity last.
type Link struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Entity carries the identity and display name of a record.
type Entity struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Component is a storage-bearing unit attached to a version-like entity.
// Container components (file sequences) list their members.
type Component struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	FileType string   `json:"file_type,omitempty"`
	Members  []string `json:"members,omitempty"`
}

// IsContainer reports whether the component groups member components.
func (c Component) IsContainer() bool {
	return len(c.Members) > 0
}

// NormalizeKind returns the case-normalized form of an entity kind used as a
// registry key.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
