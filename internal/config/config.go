package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Ftrack contains the tracking service endpoint and credentials.
type Ftrack struct {
	Server         string `toml:"server"`
	APIUser        string `toml:"api_user"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Watch selects the notifications and attribute the listener reacts to.
type Watch struct {
	Key   string `toml:"key"`
	Topic string `toml:"topic"`
}

// Storage describes the central storage location and its path structure.
type Storage struct {
	LocationID        string `toml:"location_id"`
	Prefix            string `toml:"prefix"`
	Separator         string `toml:"separator"`
	IllegalSubstitute string `toml:"illegal_substitute"`
	LowercaseSegments bool   `toml:"lowercase_segments"`
}

// Tiering selects the backend that receives (path, old, new) actions.
type Tiering struct {
	Backend   string `toml:"backend"`
	XattrName string `toml:"xattr_name"`
}

// Subscription configures where notifications come from.
type Subscription struct {
	Source   string `toml:"source"`
	SpoolDir string `toml:"spool_dir"`
	Buffer   int    `toml:"buffer"`
}

// Journal configures the audit trail of tiering actions.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Driver  string `toml:"driver"`
	DSN     string `toml:"dsn"`
}

// Metrics configures the HTTP endpoint serving /metrics, /healthz, and
// /api/status. An empty bind disables it. A non-empty token requires
// "Authorization: Bearer <token>" on /api/status.
type Metrics struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications contains configuration for ntfy push alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Failures       bool   `toml:"failures"`
	Unhandled      bool   `toml:"unhandled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tierwatch.
//
// Configuration sections by subsystem:
//   - Paths: state (lock file, sqlite journal) and log directories
//   - Ftrack: REST endpoint and API credentials
//   - Watch: watched attribute key and subscription topic filter
//   - Storage: central storage location id, mount prefix, and path structure
//   - Tiering: backend selection
//   - Subscription: notification source (spool directory or stdin)
//   - Journal: audit trail driver and DSN
//   - Metrics: Prometheus bind address
//   - Notifications: ntfy alert settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ftrack        Ftrack        `toml:"ftrack"`
	Watch         Watch         `toml:"watch"`
	Storage       Storage       `toml:"storage"`
	Tiering       Tiering       `toml:"tiering"`
	Subscription  Subscription  `toml:"subscription"`
	Journal       Journal       `toml:"journal"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tierwatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tierwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the listener writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir}
	if c.Subscription.Source == SourceSpool {
		dirs = append(dirs, c.Subscription.SpoolDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-listener lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tierwatch.lock")
}

// FtrackTimeout returns the per-request timeout for ftrack API calls.
func (c *Config) FtrackTimeout() time.Duration {
	return time.Duration(c.Ftrack.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
