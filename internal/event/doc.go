// Package event models change notifications delivered by the tracking service
// and extracts the entity changes that touch the watched attribute.
//
// Filtering is a pure transformation. A notification whose payload is missing
// the entity list, or whose entity records cannot be decoded, yields fewer (or
// zero) changes rather than an error so the subscription keeps running.
package event
