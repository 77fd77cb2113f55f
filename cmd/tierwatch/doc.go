// Package main hosts the tierwatch CLI entrypoint and command graph.
//
// The Cobra command tree runs the long-lived listener, replays recorded
// notifications through the same dispatch pipeline, resolves single entities
// to storage paths for inspection, and manages the tiering journal and the
// configuration file. Configuration is resolved once per invocation and shared
// by every subcommand.
//
// Keep this package thin: behavior lives in the internal packages and is only
// surfaced here through commands and flags.
package main
