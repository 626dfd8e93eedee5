// Package state is the SQLite session archive: one row per session with its
// latest snapshot, plus the append-only log of applied execution records.
// The archive lives in the project at .stepwise/state.db unless state.path
// says otherwise.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB is an open session archive.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// ProjectDBPath returns the archive path for a project root.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".stepwise", "state.db")
}

// pragmas are applied to every new connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

func dsn(path string) string {
	q := ""
	for i, p := range pragmas {
		if i > 0 {
			q += "&"
		}
		q += "_pragma=" + p
	}
	return "file:" + path + "?" + q
}

// Open opens the archive at path, creating parent directories as needed.
// The schema is not touched; see OpenMigrated.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// Ping forces the driver to create the file and apply the pragmas now
	// rather than on first use.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return &DB{conn: conn, path: path}, nil
}

// OpenMigrated opens path and brings its schema up to SchemaVersion.
func OpenMigrated(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the archive file path.
func (db *DB) Path() string {
	return db.path
}

type migration struct {
	version int
	name    string
	ddl     string
}

var migrations = []migration{
	{1, "sessions", `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	goal TEXT NOT NULL,
	complexity TEXT NOT NULL,
	mode TEXT NOT NULL DEFAULT 'run',
	status TEXT NOT NULL DEFAULT 'active',
	started_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	snapshot TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`},
	{2, "execution_records", `
CREATE TABLE IF NOT EXISTS execution_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	task_id INTEGER NOT NULL,
	task_title TEXT NOT NULL,
	task_description TEXT NOT NULL,
	execution_result TEXT NOT NULL,
	status TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_records_session ON execution_records(session_id);
`},
}

// SchemaVersion is the version Migrate brings an archive to.
var SchemaVersion = migrations[len(migrations)-1].version

// Migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.Transaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.ddl); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Exec runs a statement under the write lock.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query runs a read under the read lock.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow runs a single-row read under the read lock.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs fn in a transaction under the write lock. fn's error
// rolls the transaction back and is returned unwrapped.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Timestamps are stored as UTC RFC 3339 text so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// PurgeOldSessions deletes sessions started more than olderThan ago along
// with their execution records, and returns how many sessions went.
func (db *DB) PurgeOldSessions(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var purged int64
	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM execution_records
			WHERE session_id IN (SELECT id FROM sessions WHERE started_at < ?)`, cutoff); err != nil {
			return fmt.Errorf("purge execution records: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM sessions WHERE started_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}
