package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func insertRun(t *testing.T, db *DB, id string, createdAt time.Time) {
	t.Helper()
	_, err := db.Exec("INSERT INTO runs (id, description, created_at) VALUES (?, ?, ?)", id, "goal", formatTime(createdAt))
	if err != nil {
		t.Fatalf("insert run %s: %v", id, err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name string
		rel  string
	}{
		{"flat", "test.db"},
		{"nested parents", filepath.Join("a", "b", "c", "test.db")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.rel)
			db, err := Open(path)
			if err != nil {
				t.Fatalf("Open(%q) error: %v", path, err)
			}
			defer db.Close()

			if db.Path() != path {
				t.Errorf("Path() = %q, want %q", db.Path(), path)
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("database file missing: %v", err)
			}
		})
	}
}

func TestOpen_Pragmas(t *testing.T) {
	db := setupTestDB(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenProject(t *testing.T) {
	root := t.TempDir()
	db, err := OpenProject(root)
	if err != nil {
		t.Fatalf("OpenProject failed: %v", err)
	}
	defer db.Close()

	if want := filepath.Join(root, ".orca", "state.db"); db.Path() != want {
		t.Errorf("Path() = %q, want %q", db.Path(), want)
	}
	if _, err := db.ListRuns(0); err != nil {
		t.Errorf("ListRuns on a fresh project db: %v", err)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := db.Query("SELECT 1"); err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"schema_version", "runs", "snapshots"} {
		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if want := migrations[len(migrations)-1].version; version != want {
		t.Errorf("schema version = %d, want %d", version, want)
	}
}

func TestTransaction_Success(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO runs (id, description, created_at) VALUES (?, ?, ?)", "tx-1", "goal", formatTime(time.Now()))
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", "tx-1").Scan(&count); err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if count != 1 {
		t.Error("transaction was not committed")
	}
}

func TestTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO runs (id, description, created_at) VALUES (?, ?, ?)", "tx-fail", "goal", formatTime(time.Now())); err != nil {
			return err
		}
		return fmt.Errorf("simulated error")
	})
	if err == nil {
		t.Error("expected error from Transaction")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", "tx-fail").Scan(&count); err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if count != 0 {
		t.Error("transaction was not rolled back")
	}
}

func TestFormatTime_SortsLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	later := base.Add(100 * time.Millisecond)
	if a, b := formatTime(base), formatTime(later); a >= b {
		t.Errorf("formatTime(%v) = %q sorts after %q", base, a, b)
	}

	parsed, err := parseTime(formatTime(later))
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if !parsed.Equal(later) {
		t.Errorf("parseTime(formatTime(t)) = %v, want %v", parsed, later)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	insertRun(t, db, "old", time.Now().Add(-48*time.Hour))
	insertRun(t, db, "new", time.Now())
	if _, err := db.Exec("INSERT INTO snapshots (run_id, path, content) VALUES (?, ?, ?)", "old", "a.ts", "x"); err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeOldRuns() = %d, want 1", n)
	}

	var snapshots int
	if err := db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&snapshots); err != nil {
		t.Fatal(err)
	}
	if snapshots != 0 {
		t.Errorf("snapshots left = %d, want 0 after cascade", snapshots)
	}
}
