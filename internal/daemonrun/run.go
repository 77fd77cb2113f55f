package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tierwatch/internal/config"
	"tierwatch/internal/daemon"
	"tierwatch/internal/logging"
	"tierwatch/internal/metrics"
	"tierwatch/internal/notifications"
	"tierwatch/internal/preflight"
	"tierwatch/internal/subscription"
)

// Options configures listener process runtime behavior.
type Options struct {
	LogLevel string
	// Stdin feeds the stdin subscription source. Defaults to os.Stdin.
	Stdin io.Reader
}

// Run starts the tierwatch listener and blocks until a signal or a fatal
// source error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg, opts.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)

	m := metrics.New()
	alerts := notifications.NewService(cfg)
	pipeline, err := Build(cfg, BuildOptions{Logger: logger, Metrics: m, Alerts: alerts})
	if err != nil {
		logger.Error("build pipeline", logging.Error(err))
		return err
	}
	defer pipeline.Close()

	if err := pipeline.VerifyLocation(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "storage location unavailable", "location_unavailable",
			logging.String("location_id", cfg.Storage.LocationID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage.location_id and ftrack credentials"),
		)
		return err
	}
	logger.Info("storage location verified",
		logging.String("location_id", pipeline.Location.ID),
		logging.String("location_name", pipeline.Location.Name),
	)

	if err := checkStoragePrefix(logger, cfg); err != nil {
		return err
	}

	source := NewSource(cfg, opts.Stdin, logger)
	loop := subscription.NewLoop(source, subscription.Options{
		Buffer: cfg.Subscription.Buffer,
		Logger: logger,
	})
	if err := loop.Subscribe(cfg.Watch.Topic, pipeline.Callback()); err != nil {
		return fmt.Errorf("subscribe %q: %w", cfg.Watch.Topic, err)
	}

	daemonOpts := daemon.Options{Metrics: m.Handler(), Source: source.Name()}
	if pipeline.Journal != nil {
		daemonOpts.Journal = pipeline.Journal
	}
	d, err := daemon.New(cfg, loop, logger, daemonOpts)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	runErr := d.Run(signalCtx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		if alertErr := alerts.NotifyListenerStopped(context.WithoutCancel(signalCtx), runErr); alertErr != nil {
			logger.Debug("listener stop alert failed", logging.Error(alertErr))
		}
		return runErr
	}
	logger.Info("tierwatch listener shutting down")
	return nil
}

// NewSource returns the notification source selected by the [subscription]
// section.
func NewSource(cfg *config.Config, stdin io.Reader, logger *slog.Logger) subscription.Source {
	if cfg.Subscription.Source == config.SourceStdin {
		if stdin == nil {
			stdin = os.Stdin
		}
		return subscription.NewReaderSource("stdin", stdin, logger)
	}
	return subscription.NewSpoolSource(cfg.Subscription.SpoolDir, logger)
}

// checkStoragePrefix fails startup when the xattr backend cannot write to the
// mount; other backends only warn.
func checkStoragePrefix(logger *slog.Logger, cfg *config.Config) error {
	write := cfg.Tiering.Backend == config.BackendXattr
	result := preflight.CheckDirectoryAccess("Storage prefix", cfg.Storage.Prefix, write)
	if result.Passed {
		return nil
	}
	if write {
		logging.ErrorWithContext(logger, "storage prefix not writable", "storage_unavailable",
			logging.String("prefix", cfg.Storage.Prefix),
			logging.String("detail", result.Detail),
		)
		return fmt.Errorf("storage prefix %s: %s", cfg.Storage.Prefix, result.Detail)
	}
	logging.WarnWithContext(logger, "storage prefix not accessible", "storage_unavailable",
		logging.String("prefix", cfg.Storage.Prefix),
		logging.String("detail", result.Detail),
		logging.String(logging.FieldImpact, "resolved paths may not exist on this host"),
	)
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("ftrack_server", cfg.Ftrack.Server),
		logging.Bool("ftrack_key_present", strings.TrimSpace(cfg.Ftrack.APIKey) != ""),
		logging.String("watch_key", cfg.Watch.Key),
		logging.String("watch_topic", cfg.Watch.Topic),
		logging.String("location_id", cfg.Storage.LocationID),
		logging.String("storage_prefix", cfg.Storage.Prefix),
		logging.String("tiering_backend", cfg.Tiering.Backend),
		logging.String("subscription_source", cfg.Subscription.Source),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
		logging.String("journal_driver", cfg.Journal.Driver),
		logging.String("metrics_bind", cfg.Metrics.Bind),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
