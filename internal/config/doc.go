// Package config loads, normalizes, and validates tierwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the standard ftrack environment
// fallbacks (FTRACK_SERVER, FTRACK_API_USER, FTRACK_API_KEY) plus
// TIERWATCH_JOURNAL_DSN. The Config type centralizes every knob the listener
// and CLI need so credentials, the storage location, and the subscription
// source are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
