// Package state provides SQLite-based run history for orca. Each run
// records its plan and change set; applied runs also keep the pre-apply
// snapshot so they can be rolled back later. The database lives in the
// project at .orca/state.db.
package state

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the run history database. Writes are serialized.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// connPragmas are applied to every pooled connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// ProjectDBPath returns the default database path of a project.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".orca", "state.db")
}

// Open opens the database at path, creating parent directories as needed.
// The schema is not touched; call Migrate.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	conn, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return &DB{conn: conn, path: path}, nil
}

// OpenProject opens and migrates the database under projectRoot.
func OpenProject(projectRoot string) (*DB, error) {
	db, err := Open(ProjectDBPath(projectRoot))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

type migration struct {
	version int
	stmt    string
}

// migrations are applied in order; append only.
var migrations = []migration{
	{1, `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	applied INTEGER NOT NULL DEFAULT 0,
	valid INTEGER NOT NULL DEFAULT 0,
	rolled_back INTEGER NOT NULL DEFAULT 0,
	plan_json TEXT,
	changeset_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`},
	{2, `
CREATE TABLE IF NOT EXISTS snapshots (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	content TEXT,
	is_new INTEGER NOT NULL DEFAULT 0,
	is_dir INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, path)
);`},
	{3, `
ALTER TABLE runs ADD COLUMN status TEXT NOT NULL DEFAULT 'planned';
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);`},
}

// Migrate brings the schema up to the latest version. Each migration
// commits together with its schema_version row.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.inTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.stmt); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version)
			return err
		}); err != nil {
			return fmt.Errorf("migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs fn in a transaction, rolling back when fn fails.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.inTx(fn)
}

// inTx expects db.mu to be held.
func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// PurgeOldRuns deletes runs created more than olderThan ago, cascading to
// their snapshots, and returns how many were removed.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	res, err := db.Exec(`DELETE FROM runs WHERE created_at < ?`, formatTime(time.Now().Add(-olderThan)))
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}
	return n, nil
}
