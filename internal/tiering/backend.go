package tiering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sys/unix"

	"tierwatch/internal/config"
	"tierwatch/internal/logging"
)

// Action is one tiering request.
type Action struct {
	Path          string `json:"path"`
	Old           string `json:"old"`
	New           string `json:"new"`
	EntityKind    string `json:"entity_kind,omitempty"`
	EntityID      string `json:"entity_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Backend performs tiering actions.
type Backend interface {
	Name() string
	Apply(ctx context.Context, action Action) error
}

// NewBackend returns the backend selected by the [tiering] section.
func NewBackend(cfg config.Tiering, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLog, "":
		return NewLogBackend(logger), nil
	case config.BackendXattr:
		return NewXattrBackend(cfg.XattrName), nil
	default:
		return nil, fmt.Errorf("unknown tiering backend %q", cfg.Backend)
	}
}

// LogBackend logs the action without touching storage.
type LogBackend struct {
	logger *slog.Logger
}

// NewLogBackend returns a log-only backend.
func NewLogBackend(logger *slog.Logger) *LogBackend {
	return &LogBackend{logger: logging.NewComponentLogger(logger, "tiering")}
}

func (b *LogBackend) Name() string { return config.BackendLog }

func (b *LogBackend) Apply(ctx context.Context, action Action) error {
	logging.WithContext(ctx, b.logger).Info(
		fmt.Sprintf("%s : %s -> %s", action.Path, action.Old, action.New),
		logging.String(logging.FieldPath, action.Path),
		logging.String("old", action.Old),
		logging.String("new", action.New),
	)
	return nil
}

// XattrBackend stores the new tag in an extended attribute on the path. An
// empty new value removes the attribute.
type XattrBackend struct {
	name string
}

// NewXattrBackend returns a backend writing attribute name.
func NewXattrBackend(name string) *XattrBackend {
	return &XattrBackend{name: name}
}

func (b *XattrBackend) Name() string { return config.BackendXattr }

// Attribute returns the extended attribute written by the backend.
func (b *XattrBackend) Attribute() string { return b.name }

func (b *XattrBackend) Apply(_ context.Context, action Action) error {
	if action.New == "" {
		err := unix.Removexattr(action.Path, b.name)
		if err != nil && !errors.Is(err, unix.ENODATA) {
			return fmt.Errorf("remove %s on %s: %w", b.name, action.Path, err)
		}
		return nil
	}
	if err := unix.Setxattr(action.Path, b.name, []byte(action.New), 0); err != nil {
		return fmt.Errorf("set %s on %s: %w", b.name, action.Path, err)
	}
	return nil
}

// RecordBackend keeps applied actions in memory.
type RecordBackend struct {
	mu      sync.Mutex
	actions []Action
	// Fail returns an error for paths that should fail. Optional.
	Fail func(path string) error
}

// NewRecordBackend returns an empty recording backend.
func NewRecordBackend() *RecordBackend {
	return &RecordBackend{}
}

func (b *RecordBackend) Name() string { return "record" }

func (b *RecordBackend) Apply(_ context.Context, action Action) error {
	if b.Fail != nil {
		if err := b.Fail(action.Path); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions = append(b.actions, action)
	return nil
}

// Actions returns a copy of the recorded actions in call order.
func (b *RecordBackend) Actions() []Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.actions)
}
