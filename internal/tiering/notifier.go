package tiering

import (
	"context"
	"log/slog"
	"time"

	"tierwatch/internal/journal"
	"tierwatch/internal/logging"
	"tierwatch/internal/services"
)

// Journal records tiering attempts.
type Journal interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Observer receives tiering measurements.
type Observer interface {
	TieringApplied(backend, status string)
}

// Notifier forwards transitions to the backend one path at a time.
type Notifier struct {
	backend  Backend
	journal  Journal
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithJournal records every attempt in j.
func WithJournal(j Journal) Option {
	return func(n *Notifier) { n.journal = j }
}

// WithObserver reports every attempt to o.
func WithObserver(o Observer) Option {
	return func(n *Notifier) { n.observer = o }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) { n.logger = logging.NewComponentLogger(logger, "tiering") }
}

// NewNotifier wraps backend.
func NewNotifier(backend Backend, opts ...Option) *Notifier {
	n := &Notifier{backend: backend, logger: logging.NewComponentLogger(nil, "tiering"), now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Backend returns the wrapped backend.
func (n *Notifier) Backend() Backend {
	return n.backend
}

// Notify applies one (path, old, new) transition. Backend failures are
// returned wrapped in services.ErrBackend. Journal failures are logged only.
func (n *Notifier) Notify(ctx context.Context, path, oldValue, newValue string) error {
	action := Action{Path: path, Old: oldValue, New: newValue}
	action.CorrelationID, _ = services.CorrelationIDFromContext(ctx)
	action.EntityKind, action.EntityID, _ = services.EntityFromContext(ctx)

	applyErr := n.backend.Apply(ctx, action)
	status := journal.StatusApplied
	if applyErr != nil {
		status = journal.StatusFailed
	}

	if n.observer != nil {
		n.observer.TieringApplied(n.backend.Name(), status)
	}
	if n.journal != nil {
		entry := journal.Entry{
			At:            n.now().UTC(),
			CorrelationID: action.CorrelationID,
			EntityKind:    action.EntityKind,
			EntityID:      action.EntityID,
			Path:          path,
			OldValue:      oldValue,
			NewValue:      newValue,
			Backend:       n.backend.Name(),
			Status:        status,
		}
		if applyErr != nil {
			entry.Error = applyErr.Error()
		}
		if err := n.journal.Record(ctx, entry); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, n.logger), "journal write failed", "journal_write_failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "tiering action is missing from the audit trail"),
				logging.String(logging.FieldErrorHint, "check journal.dsn and database health"),
			)
		}
	}

	if applyErr != nil {
		return services.Wrap(services.ErrBackend, "tiering", n.backend.Name(), path, applyErr)
	}
	return nil
}
