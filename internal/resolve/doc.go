// Package resolve turns an entity reference into the filesystem path(s) it
// occupies at the central storage location.
//
// Two strategies exist. HierarchyResolver builds a path from an entity's
// ancestor chain (project name, then every intermediate ancestor, leaf
// excluded). ComponentResolver asks the location for the availability of each
// component a version owns and maps every present component to its path.
// Nothing is cached: each call reads fresh state from the collaborators.
package resolve
