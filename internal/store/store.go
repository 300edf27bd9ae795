// Package store persists townhall records in SQLite.
//
// Store is the entry point. Reads and single-record writes go straight to the
// database; multi-record writes that must land together run inside
// Store.WithTx, whose callback receives a Tx exposing the same repository
// methods bound to the transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"townhall/internal/logging"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// handle carries the repository methods; it is bound either to the database
// or to an open transaction.
type handle struct {
	x   execer
	now func() time.Time
}

// Store is the SQLite-backed persistence layer.
type Store struct {
	handle
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Tx is a store handle bound to an open transaction.
type Tx struct {
	handle
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps. Tests use it to pin
// "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open initializes the SQLite database at the given path, creating the
// schema and applying pending migrations. ":memory:" opens a private
// in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	logging.Store("Opening store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("Failed to apply %q: %v", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: path}
	s.handle = handle{x: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logging.Store("Store ready (schema v%d)", GetSchemaVersion(db))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// SchemaVersion reports the applied schema version.
func (s *Store) SchemaVersion() int {
	return GetSchemaVersion(s.db)
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so none of fn's writes persist on
// error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				logging.StoreWarn("Rollback failed: %v", rbErr)
			}
			return
		}
		if cErr := sqlTx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(&Tx{handle: handle{x: sqlTx, now: s.now}})
}

// initialize creates the base tables. Columns added after the first
// release are applied by RunMigrations.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS divisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ocd_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS offices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		division_id INTEGER NOT NULL REFERENCES divisions(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		UNIQUE(division_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_offices_division ON offices(division_id);

	CREATE TABLE IF NOT EXISTS officials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		party TEXT NOT NULL DEFAULT '',
		in_office INTEGER NOT NULL DEFAULT 1,
		meeting_info_source TEXT NOT NULL DEFAULT '',
		office_id INTEGER NOT NULL REFERENCES offices(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_officials_office ON officials(office_id);

	CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		official_id INTEGER NOT NULL REFERENCES officials(id) ON DELETE CASCADE,
		line1 TEXT NOT NULL,
		line2 TEXT NOT NULL DEFAULT '',
		line3 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		state TEXT NOT NULL,
		postal_code TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS social_media_channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		official_id INTEGER NOT NULL REFERENCES officials(id) ON DELETE CASCADE,
		channel_id TEXT NOT NULL,
		channel_type TEXT NOT NULL CHECK (channel_type IN ('GooglePlus', 'YouTube', 'Facebook', 'Twitter'))
	);

	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		official_id INTEGER NOT NULL REFERENCES officials(id) ON DELETE CASCADE,
		address TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS websites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		official_id INTEGER NOT NULL REFERENCES officials(id) ON DELETE CASCADE,
		url TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS phones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		official_id INTEGER NOT NULL REFERENCES officials(id) ON DELETE CASCADE,
		phone TEXT NOT NULL
	);

	-- Dates are stored as YYYY-MM-DD so they compare lexicographically.
	CREATE TABLE IF NOT EXISTS meetings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		official_id INTEGER NOT NULL REFERENCES officials(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		event_website TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_meetings_official_date ON meetings(official_id, date);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		is_staff INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		date_joined TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contact_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		official_id INTEGER NOT NULL REFERENCES officials(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		datetime TEXT NOT NULL,
		method TEXT NOT NULL CHECK (method IN ('phone', 'email')),
		contacted INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_contact_attempts_official ON contact_attempts(official_id);

	CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		owner_kind TEXT NOT NULL CHECK (owner_kind IN ('meeting', 'official')),
		owner_id INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sources_owner ON sources(owner_kind, owner_id);

	CREATE TABLE IF NOT EXISTS login_codes (
		code TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		next TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		used INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

	CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTime reads a stored timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
