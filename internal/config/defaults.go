package config

// Subscription sources.
const (
	SourceSpool = "spool"
	SourceStdin = "stdin"
)

// Tiering backends selectable from the config file.
const (
	BackendLog   = "log"
	BackendXattr = "xattr"
)

// Journal drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultStateDir           = "~/.local/share/tierwatch"
	defaultLogDir             = "~/.local/share/tierwatch/logs"
	defaultSpoolDir           = "~/.local/share/tierwatch/spool"
	defaultFtrackTimeout      = 30
	defaultWatchKey           = "hs_location"
	defaultWatchTopic         = "topic=ftrack.update"
	defaultSeparator          = "/"
	defaultIllegalSubstitute  = "_"
	defaultTieringBackend     = BackendLog
	defaultXattrName          = "user.hs_location"
	defaultSubscriptionSource = SourceSpool
	defaultSubscriptionBuffer = 64
	defaultJournalDriver      = DriverSQLite
	defaultJournalFile        = "journal.db"
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Ftrack: Ftrack{
			TimeoutSeconds: defaultFtrackTimeout,
		},
		Watch: Watch{
			Key:   defaultWatchKey,
			Topic: defaultWatchTopic,
		},
		Storage: Storage{
			Separator:         defaultSeparator,
			IllegalSubstitute: defaultIllegalSubstitute,
		},
		Tiering: Tiering{
			Backend:   defaultTieringBackend,
			XattrName: defaultXattrName,
		},
		Subscription: Subscription{
			Source:   defaultSubscriptionSource,
			SpoolDir: defaultSpoolDir,
			Buffer:   defaultSubscriptionBuffer,
		},
		Journal: Journal{
			Enabled: true,
			Driver:  defaultJournalDriver,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Failures:       true,
			Unhandled:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
