// Package notifications pushes operator alerts via ntfy.
//
// Alerts cover changes that need a human: a location tag change that failed
// to reconcile, one whose entity kind has no handler, and a listener that
// stopped. The service degrades to a no-op when no ntfy topic is configured.
package notifications
