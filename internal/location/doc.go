// Package location models the central storage location entities resolve
// against: a path Structure (separator and segment sanitization), a disk
// Accessor rooted at a mount prefix, and component lookups delegated to a
// ComponentLocator (the ftrack client).
package location
