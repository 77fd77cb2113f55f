package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"tierwatch/internal/event"
	"tierwatch/internal/logging"
)

// Source produces notifications until ctx is canceled or it is exhausted.
// Run must not close out.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- event.Notification) error
}

// ReaderSource decodes concatenated JSON notifications from a reader.
// Documents that decode but are not notifications are logged and skipped.
type ReaderSource struct {
	name   string
	r      io.Reader
	logger *slog.Logger
}

// NewReaderSource returns a source reading from r.
func NewReaderSource(name string, r io.Reader, logger *slog.Logger) *ReaderSource {
	if name == "" {
		name = "reader"
	}
	return &ReaderSource{name: name, r: r, logger: logging.NewComponentLogger(logger, "subscription")}
}

func (s *ReaderSource) Name() string { return s.name }

func (s *ReaderSource) Run(ctx context.Context, out chan<- event.Notification) error {
	dec := event.NewDecoder(s.r)
	for {
		n, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, event.ErrInvalid) {
			logging.WarnWithContext(s.logger, "skipping invalid notification", "notification_invalid",
				logging.String("source", s.name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "document was not processed"),
				logging.String(logging.FieldErrorHint, "check the recorded notification JSON"),
			)
			continue
		}
		if err != nil {
			return err
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
