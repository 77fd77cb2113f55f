// Package handlers reconciles location tag changes for the entity kinds the
// listener understands: hierarchical "task" entities, whose path is built from
// their link chain, and "assetversion" entities, whose paths come from their
// components present at the storage location.
package handlers
