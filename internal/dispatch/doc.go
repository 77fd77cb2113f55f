// Package dispatch routes filtered entity changes to the handler registered for
// their entity kind.
//
// Handlers are registered explicitly at startup under a case-normalized kind.
// Dispatch never returns an error: every per-change failure is classified,
// logged, counted, and folded into the Ack returned to the subscription so the
// listener keeps running. Changes whose kind has no handler are reported at
// warning level and left as they are; no reversal of the attribute change is
// attempted.
package dispatch
