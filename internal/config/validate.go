package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tierwatch/internal/textutil"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFtrack(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTiering(); err != nil {
		return err
	}
	if err := c.validateSubscription(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateFtrack() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/tierwatch/config.toml"
	}
	if c.Ftrack.Server == "" {
		return fmt.Errorf("ftrack.server is required. Set FTRACK_SERVER env var or edit %s (create with 'tierwatch config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Ftrack.Server)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("ftrack.server must be an http(s) URL, got %q", c.Ftrack.Server)
	}
	if c.Ftrack.APIUser == "" {
		return fmt.Errorf("ftrack.api_user is required. Set FTRACK_API_USER env var or edit %s", defaultPath)
	}
	if c.Ftrack.APIKey == "" {
		return fmt.Errorf("ftrack.api_key is required. Set FTRACK_API_KEY env var or edit %s", defaultPath)
	}
	return nil
}

func (c *Config) validateWatch() error {
	for _, r := range c.Watch.Key {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("watch.key must be an attribute key, got %q", c.Watch.Key)
		}
	}
	if !strings.HasPrefix(c.Watch.Topic, "topic=") || strings.TrimPrefix(c.Watch.Topic, "topic=") == "" {
		return fmt.Errorf("watch.topic must look like topic=<pattern>, got %q", c.Watch.Topic)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.LocationID == "" {
		return errors.New("storage.location_id is required")
	}
	if _, err := uuid.Parse(c.Storage.LocationID); err != nil {
		return fmt.Errorf("storage.location_id must be an ftrack id: %w", err)
	}
	if c.Storage.Prefix == "" {
		return errors.New("storage.prefix is required")
	}
	if !filepath.IsAbs(c.Storage.Prefix) {
		return fmt.Errorf("storage.prefix must be absolute, got %q", c.Storage.Prefix)
	}
	if strings.ContainsAny(c.Storage.IllegalSubstitute, `/\`) {
		return errors.New("storage.illegal_substitute must not contain path separators")
	}
	if strings.IndexFunc(c.Storage.Separator, textutil.IsSegmentRune) >= 0 {
		return fmt.Errorf("storage.separator must not use characters kept in names, got %q", c.Storage.Separator)
	}
	return nil
}

func (c *Config) validateTiering() error {
	switch c.Tiering.Backend {
	case BackendLog:
	case BackendXattr:
		if !strings.Contains(c.Tiering.XattrName, ".") {
			return fmt.Errorf("tiering.xattr_name must be namespaced (for example user.hs_location), got %q", c.Tiering.XattrName)
		}
	default:
		return fmt.Errorf("tiering.backend must be %q or %q, got %q", BackendLog, BackendXattr, c.Tiering.Backend)
	}
	return nil
}

func (c *Config) validateSubscription() error {
	switch c.Subscription.Source {
	case SourceSpool, SourceStdin:
	default:
		return fmt.Errorf("subscription.source must be %q or %q, got %q", SourceSpool, SourceStdin, c.Subscription.Source)
	}
	if c.Subscription.Buffer > 100000 {
		return errors.New("subscription.buffer must be at most 100000")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if !c.Journal.Enabled {
		return nil
	}
	switch c.Journal.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Journal.DSN == "" {
			return errors.New("journal.dsn is required for the postgres driver (or set TIERWATCH_JOURNAL_DSN)")
		}
	default:
		return fmt.Errorf("journal.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Journal.Driver)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
		return fmt.Errorf("metrics.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if _, err := url.ParseRequestURI(c.Notifications.NtfyTopic); err != nil {
		return fmt.Errorf("notifications.ntfy_topic must be a URL: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
