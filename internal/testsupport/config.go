package testsupport

import (
	"path/filepath"
	"testing"

	"tierwatch/internal/config"
)

// TestLocationID is the storage location id used by generated configs.
const TestLocationID = "5f0a2c4e-1b2d-4f7a-9c3e-8d1b2a3c4d5e"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Paths point under one temp root, the journal uses sqlite inside it, and the
// ftrack section holds placeholder credentials.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Ftrack.Server = "https://studio.example.test"
	cfgVal.Ftrack.APIUser = "pipeline"
	cfgVal.Ftrack.APIKey = "test"
	cfgVal.Storage.LocationID = TestLocationID
	cfgVal.Storage.Prefix = filepath.Join(base, "projects")
	cfgVal.Subscription.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Journal.Driver = config.DriverSQLite
	cfgVal.Journal.DSN = filepath.Join(base, "state", "journal.db")
	cfgVal.Metrics.Bind = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFtrackServer points the ftrack section at url, typically an httptest server.
func WithFtrackServer(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ftrack.Server = url
	}
}

// WithBackend selects the tiering backend.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tiering.Backend = name
	}
}

// WithoutJournal disables the journal.
func WithoutJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// WithDirectories creates the state, log, spool, and storage prefix directories.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
		MkdirAll(b.t, b.cfg.Storage.Prefix)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
