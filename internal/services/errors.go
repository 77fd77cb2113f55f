package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTransient       = errors.New("transient failure")
	ErrExternalService = errors.New("external service error")
	ErrUnresolvable    = errors.New("unresolvable entity")
	ErrBackend         = errors.New("tiering backend error")
	ErrUnhandledKind   = errors.New("unhandled entity kind")
)

// Outcome labels reported by Classify. They double as metric label values.
const (
	OutcomeOK           = "ok"
	OutcomeSkipped      = "skipped"
	OutcomeUnhandled    = "unhandled"
	OutcomeUnresolvable = "unresolvable"
	OutcomeBackend      = "backend_failed"
	OutcomeFailed       = "failed"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a handler error to the outcome label the dispatcher reports.
// A nil error is OutcomeOK. Not-found entities are skips, not failures, unless
// the not-found is the cause of an unresolvable or backend error.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnhandledKind):
		return OutcomeUnhandled
	case errors.Is(err, ErrUnresolvable):
		return OutcomeUnresolvable
	case errors.Is(err, ErrBackend):
		return OutcomeBackend
	case errors.Is(err, ErrNotFound):
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
