// Package tiering forwards resolved (path, old, new) location-tag transitions
// to a storage tiering backend.
//
// Notifier calls the backend exactly once per call, journals the attempt, and
// counts it. Backends: "log" records the intended action in the log, "xattr"
// writes the new tag to an extended attribute on the path, and "record" keeps
// actions in memory for dry runs and tests.
package tiering
