package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFtrack()
	c.normalizeWatch()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeTiering()
	if err := c.normalizeSubscription(); err != nil {
		return err
	}
	c.normalizeJournal()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	c.Metrics.Token = strings.TrimSpace(c.Metrics.Token)
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFtrack() {
	if c.Ftrack.Server == "" {
		if value, ok := os.LookupEnv("FTRACK_SERVER"); ok {
			c.Ftrack.Server = value
		}
	}
	if c.Ftrack.APIUser == "" {
		if value, ok := os.LookupEnv("FTRACK_API_USER"); ok {
			c.Ftrack.APIUser = value
		}
	}
	if c.Ftrack.APIKey == "" {
		if value, ok := os.LookupEnv("FTRACK_API_KEY"); ok {
			c.Ftrack.APIKey = value
		}
	}
	c.Ftrack.Server = strings.TrimRight(strings.TrimSpace(c.Ftrack.Server), "/")
	c.Ftrack.APIUser = strings.TrimSpace(c.Ftrack.APIUser)
	c.Ftrack.APIKey = strings.TrimSpace(c.Ftrack.APIKey)
	if c.Ftrack.TimeoutSeconds <= 0 {
		c.Ftrack.TimeoutSeconds = defaultFtrackTimeout
	}
}

func (c *Config) normalizeWatch() {
	c.Watch.Key = strings.TrimSpace(c.Watch.Key)
	if c.Watch.Key == "" {
		c.Watch.Key = defaultWatchKey
	}
	c.Watch.Topic = strings.TrimSpace(c.Watch.Topic)
	if c.Watch.Topic == "" {
		c.Watch.Topic = defaultWatchTopic
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.LocationID = strings.ToLower(strings.TrimSpace(c.Storage.LocationID))
	if c.Storage.Separator == "" {
		c.Storage.Separator = defaultSeparator
	}
	prefix := strings.TrimSpace(c.Storage.Prefix)
	if prefix == "" {
		c.Storage.Prefix = ""
		return nil
	}
	var err error
	if c.Storage.Prefix, err = expandPath(prefix); err != nil {
		return fmt.Errorf("storage.prefix: %w", err)
	}
	return nil
}

func (c *Config) normalizeTiering() {
	c.Tiering.Backend = strings.ToLower(strings.TrimSpace(c.Tiering.Backend))
	if c.Tiering.Backend == "" {
		c.Tiering.Backend = defaultTieringBackend
	}
	c.Tiering.XattrName = strings.TrimSpace(c.Tiering.XattrName)
	if c.Tiering.XattrName == "" {
		c.Tiering.XattrName = defaultXattrName
	}
}

func (c *Config) normalizeSubscription() error {
	c.Subscription.Source = strings.ToLower(strings.TrimSpace(c.Subscription.Source))
	if c.Subscription.Source == "" {
		c.Subscription.Source = defaultSubscriptionSource
	}
	if strings.TrimSpace(c.Subscription.SpoolDir) == "" {
		c.Subscription.SpoolDir = defaultSpoolDir
	}
	var err error
	if c.Subscription.SpoolDir, err = expandPath(c.Subscription.SpoolDir); err != nil {
		return fmt.Errorf("subscription.spool_dir: %w", err)
	}
	if c.Subscription.Buffer <= 0 {
		c.Subscription.Buffer = defaultSubscriptionBuffer
	}
	return nil
}

func (c *Config) normalizeJournal() {
	c.Journal.Driver = strings.ToLower(strings.TrimSpace(c.Journal.Driver))
	switch c.Journal.Driver {
	case "", "sqlite3":
		c.Journal.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Journal.Driver = DriverPostgres
	}
	if c.Journal.DSN == "" {
		if value, ok := os.LookupEnv("TIERWATCH_JOURNAL_DSN"); ok {
			c.Journal.DSN = value
		}
	}
	c.Journal.DSN = strings.TrimSpace(c.Journal.DSN)
	if c.Journal.DSN == "" && c.Journal.Driver == DriverSQLite {
		c.Journal.DSN = filepath.Join(c.Paths.StateDir, defaultJournalFile)
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
