package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"

	"tierwatch/internal/config"
)

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Options selects the driver and data source.
type Options struct {
	Driver string
	DSN    string
}

// Store is the journal backed by SQLite or Postgres.
type Store struct {
	db      *sql.DB
	dialect dialect
	dsn     string
}

// OpenFromConfig opens the journal described by the [journal] section.
func OpenFromConfig(cfg *config.Config) (*Store, error) {
	return Open(Options{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN})
}

// Open connects to the journal database and ensures the schema exists.
func Open(opts Options) (*Store, error) {
	var d dialect
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case config.DriverSQLite, "":
		d = sqliteDialect
	case config.DriverPostgres:
		d = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", opts.Driver)
	}
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, errors.New("journal dsn is empty")
	}
	if d.name == sqliteDialect.name && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s journal: %w", d.name, err)
	}
	ctx := context.Background()
	if d.name == sqliteDialect.name {
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	} else if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres journal: %w", err)
	}

	store := &Store{db: db, dialect: d, dsn: dsn}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Driver returns the journal driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExists).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: journal has version %d, expected %d (drop the journal database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range s.dialect.statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record appends an entry. A zero At is stamped with the current time.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	if entry.Path == "" {
		return errors.New("journal entry has no path")
	}
	query := s.dialect.rebind(`INSERT INTO tiering_actions
		(at, correlation_id, entity_kind, entity_id, path, old_value, new_value, backend, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	return s.execWithRetry(ctx, query,
		s.dialect.timeArg(entry.At),
		entry.CorrelationID,
		entry.EntityKind,
		entry.EntityID,
		entry.Path,
		entry.OldValue,
		entry.NewValue,
		entry.Backend,
		entry.Status,
		entry.Error,
	)
}

// List returns the most recent entries, newest first. A limit of zero or less
// returns every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, at, correlation_id, entity_kind, entity_id, path, old_value, new_value, backend, status, error
		FROM tiering_actions ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			at timeValue
		)
		if err := rows.Scan(&e.ID, &at, &e.CorrelationID, &e.EntityKind, &e.EntityID, &e.Path,
			&e.OldValue, &e.NewValue, &e.Backend, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.At = at.t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Counts returns the number of entries per status.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM tiering_actions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count journal: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan journal count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, s.dialect, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM tiering_actions")
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	return removed, nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	err := retryOnBusy(ctx, s.dialect, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, d dialect, op func() error) error {
	if d.name != sqliteDialect.name {
		return op()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
