package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tierwatch/internal/event"
	"tierwatch/internal/logging"
	"tierwatch/internal/services"
)

// Ack summarizes one dispatched notification. Success is false only when at
// least one change failed; unhandled kinds and skips do not count as failures.
type Ack struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Matched   int    `json:"matched"`
	Handled   int    `json:"handled"`
	Skipped   int    `json:"skipped"`
	Unhandled int    `json:"unhandled"`
	Failed    int    `json:"failed"`
}

// Observer receives dispatch measurements.
type Observer interface {
	NotificationReceived(topic string)
	ChangeProcessed(kind, outcome string)
	DispatchDuration(d time.Duration)
}

// Alerter pushes operator alerts for changes that need attention.
type Alerter interface {
	NotifyChangeFailed(ctx context.Context, kind, id string, err error) error
	NotifyUnhandledKind(ctx context.Context, kind, id string) error
}

// Options configures a Dispatcher.
type Options struct {
	WatchedKey string
	Logger     *slog.Logger
	Observer   Observer
	Alerter    Alerter
}

// Dispatcher filters notifications and routes the relevant changes.
type Dispatcher struct {
	registry *Registry
	key      string
	logger   *slog.Logger
	observer Observer
	alerter  Alerter
}

// NewDispatcher builds a dispatcher over registry.
func NewDispatcher(registry *Registry, opts Options) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	key := strings.TrimSpace(opts.WatchedKey)
	if key == "" {
		key = event.DefaultWatchedKey
	}
	return &Dispatcher{
		registry: registry,
		key:      key,
		logger:   logging.NewComponentLogger(opts.Logger, "dispatch"),
		observer: opts.Observer,
		alerter:  opts.Alerter,
	}
}

// WatchedKey returns the attribute key changes are filtered on.
func (d *Dispatcher) WatchedKey() string {
	return d.key
}

// Dispatch handles every relevant change of n in arrival order and returns an
// acknowledgment. It never panics on handler errors and never returns them.
func (d *Dispatcher) Dispatch(ctx context.Context, n event.Notification) Ack {
	started := time.Now()
	correlationID := n.ID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = services.WithCorrelationID(ctx, correlationID)
	logger := logging.WithContext(ctx, d.logger)
	if d.observer != nil {
		d.observer.NotificationReceived(n.Topic)
		defer func() { d.observer.DispatchDuration(time.Since(started)) }()
	}

	changes, err := event.Extract(n, d.key)
	if err != nil {
		logger.Debug("notification payload partially ignored",
			logging.String("topic", n.Topic),
			logging.Error(err),
		)
	}

	ack := Ack{Matched: len(changes)}
	for _, change := range changes {
		outcome := d.dispatchOne(ctx, change)
		switch outcome {
		case services.OutcomeOK:
			ack.Handled++
		case services.OutcomeSkipped:
			ack.Skipped++
		case services.OutcomeUnhandled:
			ack.Unhandled++
		default:
			ack.Failed++
		}
		if d.observer != nil {
			d.observer.ChangeProcessed(change.EntityKind, outcome)
		}
	}

	ack.Success = ack.Failed == 0
	ack.Message = summarize(ack)
	if ack.Matched > 0 {
		logger.Info("notification dispatched",
			logging.Int("matched", ack.Matched),
			logging.Int("handled", ack.Handled),
			logging.Int("skipped", ack.Skipped),
			logging.Int("unhandled", ack.Unhandled),
			logging.Int("failed", ack.Failed),
		)
	}
	return ack
}

func (d *Dispatcher) dispatchOne(ctx context.Context, change event.EntityChange) (outcome string) {
	ctx = services.WithEntity(ctx, change.EntityKind, change.EntityID)
	logger := logging.WithContext(ctx, d.logger)

	handler, ok := d.registry.Lookup(change.EntityKind)
	if !ok {
		logging.WarnWithContext(logger, fmt.Sprintf("no handler for kind %s", change.EntityKind), "unhandled_kind",
			logging.String(logging.FieldImpact, "location tag change left unreconciled"),
			logging.String(logging.FieldErrorHint, "register a handler for this entity kind or revert the attribute by hand"),
		)
		d.alert(logger, func() error {
			return d.alerter.NotifyUnhandledKind(ctx, change.EntityKind, change.EntityID)
		})
		return services.OutcomeUnhandled
	}

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "change handler panicked", "change_panic",
				logging.String("panic", fmt.Sprint(r)),
			)
			d.alert(logger, func() error {
				return d.alerter.NotifyChangeFailed(ctx, change.EntityKind, change.EntityID, fmt.Errorf("handler panic: %v", r))
			})
			outcome = services.OutcomeFailed
		}
	}()

	result, err := handler.Handle(ctx, change)
	outcome = services.Classify(err)
	switch outcome {
	case services.OutcomeOK:
		if result.Skipped {
			logger.Info("change skipped", logging.String("reason", result.Detail))
			return services.OutcomeSkipped
		}
		logger.Debug("change handled",
			logging.Int("paths", len(result.Paths)),
			logging.String("detail", result.Detail),
		)
	case services.OutcomeSkipped:
		logger.Info("change skipped", logging.String("reason", "entity not found"), logging.Error(err))
	case services.OutcomeUnhandled:
		logging.WarnWithContext(logger, "handler declined change", "unhandled_kind", logging.Error(err))
	default:
		logging.ErrorWithContext(logger, "change failed", "change_failed",
			logging.String("outcome", outcome),
			logging.Int("paths", len(result.Paths)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		d.alert(logger, func() error {
			return d.alerter.NotifyChangeFailed(ctx, change.EntityKind, change.EntityID, err)
		})
	}
	return outcome
}

func (d *Dispatcher) alert(logger *slog.Logger, send func() error) {
	if d.alerter == nil {
		return
	}
	if err := send(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("alert delivery failed", logging.Error(err))
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrUnresolvable):
		return "check the entity's project link in ftrack"
	case errors.Is(err, services.ErrBackend):
		return "check the tiering backend and the path's permissions"
	case errors.Is(err, services.ErrExternalService):
		return "check ftrack connectivity and credentials"
	default:
		return "check logs for details"
	}
}

func summarize(ack Ack) string {
	if ack.Matched == 0 {
		return "No location tag changes"
	}
	parts := []string{fmt.Sprintf("%d handled", ack.Handled)}
	if ack.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", ack.Skipped))
	}
	if ack.Unhandled > 0 {
		parts = append(parts, fmt.Sprintf("%d unhandled", ack.Unhandled))
	}
	if ack.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", ack.Failed))
	}
	return fmt.Sprintf("Processed %d location tag change(s): %s", ack.Matched, strings.Join(parts, ", "))
}
