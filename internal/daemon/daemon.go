package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tierwatch/internal/config"
	"tierwatch/internal/logging"
	"tierwatch/internal/subscription"
)

// Listener is the subscription loop the daemon drives.
type Listener interface {
	Wait(ctx context.Context) error
	Stats() subscription.Stats
}

// JournalCounter reports journal entry counts per status.
type JournalCounter interface {
	Counts(ctx context.Context) (map[string]int, error)
}

// Options carries optional collaborators.
type Options struct {
	// Metrics is served on /metrics when the endpoint is enabled.
	Metrics http.Handler
	Journal JournalCounter
	// Source names the subscription source for status output.
	Source string
}

// Daemon runs one listener and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	listener Listener
	journal  JournalCounter
	source   string
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	mu        sync.Mutex
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	StartedAt     time.Time      `json:"started_at,omitzero"`
	Source        string         `json:"source"`
	WatchedKey    string         `json:"watched_key"`
	Backend       string         `json:"backend"`
	LockFilePath  string         `json:"lock_file"`
	Notifications int64          `json:"notifications"`
	Delivered     int64          `json:"delivered"`
	Ignored       int64          `json:"ignored"`
	Journal       map[string]int `json:"journal,omitempty"`
}

// New constructs a daemon around listener.
func New(cfg *config.Config, listener Listener, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || listener == nil {
		return nil, errors.New("daemon requires config and listener")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		listener: listener,
		journal:  opts.Journal,
		source:   opts.Source,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, opts.Metrics, d.logger)
	return d, nil
}

// Run acquires the lock and blocks in the listener until ctx is canceled or
// the listener fails. The lock is released on return.
func (d *Daemon) Run(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tierwatch listener is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release listener lock", logging.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.api.start(runCtx); err != nil {
		return err
	}
	defer d.api.stop()

	d.mu.Lock()
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()
	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.Info("tierwatch listener started",
		logging.String("lock", d.lockPath),
		logging.String("source", d.source),
	)
	err = d.listener.Wait(runCtx)
	stats := d.listener.Stats()
	d.logger.Info("tierwatch listener stopped",
		logging.Int64("notifications", stats.Received),
		logging.Int64("delivered", stats.Delivered),
	)
	return err
}

// Running reports whether Run is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats := d.listener.Stats()
	d.mu.Lock()
	started := d.startedAt
	d.mu.Unlock()
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     started,
		Source:        d.source,
		WatchedKey:    d.cfg.Watch.Key,
		Backend:       d.cfg.Tiering.Backend,
		LockFilePath:  d.lockPath,
		Notifications: stats.Received,
		Delivered:     stats.Delivered,
		Ignored:       stats.Ignored,
	}
	if d.journal != nil {
		counts, err := d.journal.Counts(ctx)
		if err != nil {
			d.logger.Debug("journal counts unavailable", logging.Error(err))
		} else {
			status.Journal = counts
		}
	}
	return status
}
