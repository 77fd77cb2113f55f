// Package metrics exposes Prometheus collectors for the listener.
//
// Collectors live on a private registry so tests and multiple instances do
// not collide with the global default registry.
package metrics
