package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"tierwatch/internal/event"
	"tierwatch/internal/logging"
)

const (
	processedDir = "processed"
	rejectedDir  = "rejected"

	spoolDebounce = 100 * time.Millisecond
)

// SpoolSource watches a directory where every *.json file is one
// notification. Files already present are replayed in name order at start.
// Writers should create files under a temporary (dot or non-json) name and
// rename them into place.
type SpoolSource struct {
	dir    string
	logger *slog.Logger
}

// NewSpoolSource returns a source watching dir.
func NewSpoolSource(dir string, logger *slog.Logger) *SpoolSource {
	return &SpoolSource{dir: dir, logger: logging.NewComponentLogger(logger, "subscription")}
}

func (s *SpoolSource) Name() string { return "spool:" + s.dir }

// Dir returns the watched directory.
func (s *SpoolSource) Dir() string { return s.dir }

func (s *SpoolSource) Run(ctx context.Context, out chan<- event.Notification) error {
	for _, dir := range []string{s.dir, filepath.Join(s.dir, processedDir), filepath.Join(s.dir, rejectedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create spool directory: %w", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create spool watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(s.dir); err != nil {
		return fmt.Errorf("watch spool directory: %w", err)
	}

	if err := s.drain(ctx, out); err != nil {
		return err
	}

	// Debounce bursts of events into a single rescan.
	debounce := time.NewTimer(spoolDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return errors.New("spool watcher closed")
			}
			if !isSpoolFile(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(spoolDebounce)
		case werr, ok := <-fsw.Errors:
			if !ok {
				return errors.New("spool watcher closed")
			}
			logging.WarnWithContext(s.logger, "spool watcher error", "spool_watch_error",
				logging.Error(werr),
				logging.String(logging.FieldImpact, "some notifications may be picked up late"),
				logging.String(logging.FieldErrorHint, "check the spool directory and inotify limits"),
			)
		case <-debounce.C:
			if err := s.drain(ctx, out); err != nil {
				return err
			}
		}
	}
}

// drain emits every spooled file in name order.
func (s *SpoolSource) drain(ctx context.Context, out chan<- event.Notification) error {
	names, err := s.pending()
	if err != nil {
		return err
	}
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read spooled notification: %w", err)
		}
		n, err := event.Parse(data)
		if err != nil {
			logging.WarnWithContext(s.logger, "rejecting spooled notification", "notification_invalid",
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "notification was not processed"),
				logging.String(logging.FieldErrorHint, "inspect the file under "+rejectedDir+"/"),
			)
			s.move(name, rejectedDir)
			continue
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.move(name, processedDir)
	}
	return nil
}

func (s *SpoolSource) pending() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list spool directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && isSpoolFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *SpoolSource) move(name, sub string) {
	src := filepath.Join(s.dir, name)
	if err := os.Rename(src, filepath.Join(s.dir, sub, name)); err != nil {
		// Remove instead so the file is not replayed forever.
		_ = os.Remove(src)
		logging.WarnWithContext(s.logger, "spool move failed", "spool_move_failed",
			logging.String("file", name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "spooled file was removed instead of archived"),
		)
	}
}

func isSpoolFile(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), ".json")
}
