package daemonrun

import (
	"context"
	"fmt"
	"log/slog"

	"tierwatch/internal/config"
	"tierwatch/internal/dispatch"
	"tierwatch/internal/ftrack"
	"tierwatch/internal/handlers"
	"tierwatch/internal/journal"
	"tierwatch/internal/location"
	"tierwatch/internal/logging"
	"tierwatch/internal/metrics"
	"tierwatch/internal/notifications"
	"tierwatch/internal/resolve"
	"tierwatch/internal/subscription"
	"tierwatch/internal/tiering"
)

// BuildOptions controls how a Pipeline is assembled.
type BuildOptions struct {
	Logger *slog.Logger
	// DryRun records transitions in memory instead of applying them and
	// skips the journal.
	DryRun  bool
	Metrics *metrics.Metrics
	Alerts  notifications.Service
}

// Pipeline is the fully wired path from a notification to the tiering backend.
type Pipeline struct {
	Config     *config.Config
	Client     *ftrack.Client
	Location   *location.Location
	Hierarchy  *resolve.HierarchyResolver
	Components *resolve.ComponentResolver
	Backend    tiering.Backend
	Notifier   *tiering.Notifier
	Registry   *dispatch.Registry
	Dispatcher *dispatch.Dispatcher
	Journal    *journal.Store
}

// Build connects the ftrack client, location, resolvers, backend, journal,
// and handlers described by cfg. Close releases the journal.
func Build(cfg *config.Config, opts BuildOptions) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	client, err := ftrack.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	loc := location.New(
		cfg.Storage.LocationID,
		location.StructureFromConfig(cfg.Storage),
		location.Accessor{Prefix: cfg.Storage.Prefix},
		client,
	)

	p := &Pipeline{
		Config:     cfg,
		Client:     client,
		Location:   loc,
		Hierarchy:  resolve.NewHierarchyResolver(client, loc),
		Components: resolve.NewComponentResolver(client, loc),
		Registry:   dispatch.NewRegistry(),
	}

	var notifierOpts []tiering.Option
	notifierOpts = append(notifierOpts, tiering.WithLogger(logger))
	if opts.Metrics != nil {
		notifierOpts = append(notifierOpts, tiering.WithObserver(opts.Metrics))
	}
	if opts.DryRun {
		p.Backend = tiering.NewRecordBackend()
	} else {
		backend, err := tiering.NewBackend(cfg.Tiering, logger)
		if err != nil {
			return nil, err
		}
		p.Backend = backend
		if cfg.Journal.Enabled {
			store, err := journal.OpenFromConfig(cfg)
			if err != nil {
				return nil, fmt.Errorf("open journal: %w", err)
			}
			p.Journal = store
			notifierOpts = append(notifierOpts, tiering.WithJournal(store))
		}
	}
	p.Notifier = tiering.NewNotifier(p.Backend, notifierOpts...)

	if err := handlers.Register(p.Registry, handlers.Deps{
		Hierarchy:  p.Hierarchy,
		Components: p.Components,
		Notifier:   p.Notifier,
		Key:        cfg.Watch.Key,
		Logger:     logger,
	}); err != nil {
		p.Close()
		return nil, err
	}

	dispatchOpts := dispatch.Options{WatchedKey: cfg.Watch.Key, Logger: logger}
	if opts.Metrics != nil {
		dispatchOpts.Observer = opts.Metrics
	}
	if opts.Alerts != nil {
		dispatchOpts.Alerter = opts.Alerts
	}
	p.Dispatcher = dispatch.NewDispatcher(p.Registry, dispatchOpts)
	return p, nil
}

// Close releases resources held by the pipeline.
func (p *Pipeline) Close() error {
	if p == nil || p.Journal == nil {
		return nil
	}
	return p.Journal.Close()
}

// VerifyLocation confirms the configured storage location exists and records
// its name.
func (p *Pipeline) VerifyLocation(ctx context.Context) error {
	record, err := p.Client.Location(ctx, p.Location.ID)
	if err != nil {
		return fmt.Errorf("verify location %s: %w", p.Location.ID, err)
	}
	p.Location.Name = record.Name
	return nil
}

// Callback adapts the dispatcher to a subscription callback.
func (p *Pipeline) Callback() subscription.Callback {
	return p.Dispatcher.Dispatch
}
