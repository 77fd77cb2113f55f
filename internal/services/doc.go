// Package services defines shared utilities consumed by the change handlers and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and the entity under
//     reconciliation for logging and tracing.
//   - Structured error markers plus the Wrap helper that let the dispatcher
//     classify failures (skip vs fail vs unhandled) without string matching.
//
// Use these helpers when wiring new handlers so operational behaviour (error
// classification, observability) stays uniform across the pipeline.
package services
