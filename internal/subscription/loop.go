package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"tierwatch/internal/dispatch"
	"tierwatch/internal/event"
	"tierwatch/internal/logging"
	"tierwatch/internal/services"
)

const defaultBuffer = 64

// Callback processes one notification and returns its acknowledgment.
type Callback func(ctx context.Context, n event.Notification) dispatch.Ack

// Options configures a Loop.
type Options struct {
	Buffer int
	Logger *slog.Logger
	// OnAck observes every acknowledgment. Optional.
	OnAck func(n event.Notification, ack dispatch.Ack)
}

// Stats counts notifications seen by the loop.
type Stats struct {
	Received  int64
	Delivered int64
	Ignored   int64
}

type subscriber struct {
	filter   TopicFilter
	callback Callback
}

// Loop pumps notifications from a Source to subscribers.
type Loop struct {
	source Source
	buffer int
	logger *slog.Logger
	onAck  func(event.Notification, dispatch.Ack)

	mu          sync.Mutex
	subscribers []subscriber
	started     bool

	received  atomic.Int64
	delivered atomic.Int64
	ignored   atomic.Int64
}

// NewLoop returns a loop reading from source.
func NewLoop(source Source, opts Options) *Loop {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Loop{
		source: source,
		buffer: buffer,
		logger: logging.NewComponentLogger(opts.Logger, "subscription"),
		onAck:  opts.OnAck,
	}
}

// Subscribe registers callback for notifications whose topic matches expr.
func (l *Loop) Subscribe(expr string, callback Callback) error {
	if callback == nil {
		return errors.New("subscription callback is nil")
	}
	filter, err := ParseTopicFilter(expr)
	if err != nil {
		return services.Wrap(services.ErrValidation, "subscription", "subscribe", "", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return errors.New("subscribe after wait started")
	}
	l.subscribers = append(l.subscribers, subscriber{filter: filter, callback: callback})
	l.logger.Debug("subscribed", logging.String("filter", filter.String()))
	return nil
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Received:  l.received.Load(),
		Delivered: l.delivered.Load(),
		Ignored:   l.ignored.Load(),
	}
}

// Wait runs the source and processes notifications until ctx is canceled or
// the source is exhausted. Cancellation returns nil; a source failure is
// returned.
func (l *Loop) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("subscription loop already running")
	}
	if len(l.subscribers) == 0 {
		l.mu.Unlock()
		return errors.New("subscription loop has no subscribers")
	}
	l.started = true
	subs := append([]subscriber(nil), l.subscribers...)
	l.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan event.Notification, l.buffer)
	srcErr := make(chan error, 1)
	go func() {
		defer close(ch)
		srcErr <- l.source.Run(runCtx, ch)
	}()

	l.logger.Info("listening for notifications",
		logging.String("source", l.source.Name()),
		logging.Int("subscribers", len(subs)),
	)

	for n := range ch {
		if ctx.Err() != nil {
			break
		}
		l.deliver(ctx, subs, n)
	}
	cancel()
	// Drain so the source goroutine is never blocked on a full channel.
	for range ch {
	}

	err := <-srcErr
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("subscription source %s: %w", l.source.Name(), err)
	}
	return nil
}

func (l *Loop) deliver(ctx context.Context, subs []subscriber, n event.Notification) {
	l.received.Add(1)
	matched := false
	for _, sub := range subs {
		if !sub.filter.Match(n.Topic) {
			continue
		}
		matched = true
		ack := sub.callback(ctx, n)
		if l.onAck != nil {
			l.onAck(n, ack)
		}
		l.logger.Debug("notification acknowledged",
			logging.String("notification_id", n.ID),
			logging.String("topic", n.Topic),
			logging.Bool("success", ack.Success),
			logging.String("message", ack.Message),
		)
	}
	if matched {
		l.delivered.Add(1)
		return
	}
	l.ignored.Add(1)
	l.logger.Debug("notification ignored",
		logging.String("notification_id", n.ID),
		logging.String("topic", n.Topic),
	)
}
