package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tierwatch/internal/dispatch"
	"tierwatch/internal/event"
	"tierwatch/internal/logging"
	"tierwatch/internal/resolve"
)

// Entity kinds handled by default, as they appear in update notifications.
const (
	KindTask         = "task"
	KindAssetVersion = "assetversion"
)

// PathResolver resolves a hierarchical entity to one path.
type PathResolver interface {
	Resolve(ctx context.Context, kind, id string) (string, error)
}

// ComponentPathResolver resolves an entity to the paths of its present components.
type ComponentPathResolver interface {
	Resolve(ctx context.Context, kind, id string) (resolve.ComponentResolution, error)
}

// Notifier applies one tiering transition to one path.
type Notifier interface {
	Notify(ctx context.Context, path, oldValue, newValue string) error
}

// Deps are the collaborators shared by the default handlers.
type Deps struct {
	Hierarchy  PathResolver
	Components ComponentPathResolver
	Notifier   Notifier
	// Key is the watched attribute whose transition is forwarded.
	Key    string
	Logger *slog.Logger
}

// Register adds the default handlers to registry.
func Register(registry *dispatch.Registry, deps Deps) error {
	if deps.Notifier == nil {
		return errors.New("handlers: notifier is required")
	}
	if deps.Key == "" {
		deps.Key = event.DefaultWatchedKey
	}
	if deps.Hierarchy != nil {
		if err := registry.Register(KindTask, NewTaskHandler(deps)); err != nil {
			return err
		}
	}
	if deps.Components != nil {
		if err := registry.Register(KindAssetVersion, NewAssetVersionHandler(deps)); err != nil {
			return err
		}
	}
	return nil
}

// TaskHandler tiers the directory of a hierarchical entity.
type TaskHandler struct {
	resolver PathResolver
	notifier Notifier
	key      string
	logger   *slog.Logger
}

// NewTaskHandler builds a TaskHandler from deps.
func NewTaskHandler(deps Deps) *TaskHandler {
	return &TaskHandler{
		resolver: deps.Hierarchy,
		notifier: deps.Notifier,
		key:      keyOrDefault(deps.Key),
		logger:   logging.NewComponentLogger(deps.Logger, "handlers"),
	}
}

func (h *TaskHandler) Handle(ctx context.Context, change event.EntityChange) (dispatch.Result, error) {
	transition, ok := change.Transition(h.key)
	if !ok {
		return missingTransition(h.key), nil
	}
	path, err := h.resolver.Resolve(ctx, change.EntityKind, change.EntityID)
	if err != nil {
		return dispatch.Result{}, err
	}
	result := dispatch.Result{Paths: []string{path}, Detail: fmt.Sprintf("%s -> %s", transition.Old, transition.New)}
	return result, h.notifier.Notify(ctx, path, transition.Old, transition.New)
}

// AssetVersionHandler tiers every component of a version present at the
// storage location.
type AssetVersionHandler struct {
	resolver ComponentPathResolver
	notifier Notifier
	key      string
	logger   *slog.Logger
}

// NewAssetVersionHandler builds an AssetVersionHandler from deps.
func NewAssetVersionHandler(deps Deps) *AssetVersionHandler {
	return &AssetVersionHandler{
		resolver: deps.Components,
		notifier: deps.Notifier,
		key:      keyOrDefault(deps.Key),
		logger:   logging.NewComponentLogger(deps.Logger, "handlers"),
	}
}

func (h *AssetVersionHandler) Handle(ctx context.Context, change event.EntityChange) (dispatch.Result, error) {
	transition, ok := change.Transition(h.key)
	if !ok {
		return missingTransition(h.key), nil
	}
	logger := logging.WithContext(ctx, h.logger)

	res, resolveErr := h.resolver.Resolve(ctx, change.EntityKind, change.EntityID)
	for _, skipped := range res.Skipped {
		logger.Debug("component not available at location",
			logging.String("component_id", skipped.ID),
			logging.String("component", skipped.Name),
			logging.Float64("availability", 0),
		)
	}
	if !res.Produced {
		if resolveErr != nil {
			return dispatch.Result{}, resolveErr
		}
		logger.Debug("No components found on central storage location")
		return dispatch.Result{Skipped: true, Detail: "no components at location"}, nil
	}

	result := dispatch.Result{Detail: fmt.Sprintf("%s -> %s", transition.Old, transition.New)}
	errs := []error{resolveErr}
	for _, cp := range res.Paths {
		logger.Debug("tiering component",
			logging.String("component_id", cp.Component.ID),
			logging.String("component", cp.Component.Name),
			logging.Float64("availability", cp.Availability),
			logging.String(logging.FieldPath, cp.Path),
		)
		if err := h.notifier.Notify(ctx, cp.Path, transition.Old, transition.New); err != nil {
			errs = append(errs, err)
			continue
		}
		result.Paths = append(result.Paths, cp.Path)
	}
	return result, errors.Join(errs...)
}

func keyOrDefault(key string) string {
	if key == "" {
		return event.DefaultWatchedKey
	}
	return key
}

func missingTransition(key string) dispatch.Result {
	return dispatch.Result{Skipped: true, Detail: "no " + key + " transition recorded"}
}
