// Package subscription delivers change notifications to subscribers.
//
// A Source produces notifications on a goroutine of its own and feeds a
// bounded channel. The Loop drains that channel in order, matching each
// notification's topic against the registered filters and invoking the
// callbacks one notification at a time.
package subscription
