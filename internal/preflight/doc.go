// Package preflight provides readiness checks for the tracking service, the
// storage mount, and the local state tierwatch depends on.
//
// These checks run in two contexts:
//   - The listener calls RunAll at startup and refuses to start when a
//     required check fails.
//   - The CLI "tierwatch status" command renders every Result.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
