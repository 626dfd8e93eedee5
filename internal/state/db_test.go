package state

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenMigrated: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesArchiveAndParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".stepwise", "state.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("archive file not created: %v", err)
	}
}

func TestOpen_UnwritableLocation(t *testing.T) {
	if _, err := Open("/proc/stepwise/state.db"); err == nil {
		t.Error("expected an error for an unwritable location")
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	db := openTestDB(t)

	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"schema_version", "sessions", "execution_records"} {
		t.Run(table, func(t *testing.T) {
			var n int
			err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
			if err != nil {
				t.Fatalf("query sqlite_master: %v", err)
			}
			if n != 1 {
				t.Errorf("table %s missing", table)
			}
		})
	}
}

func TestMigrate_Repeatable(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 2; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate run %d: %v", i+2, err)
		}
	}

	var version, rows int
	if err := db.QueryRow(`SELECT MAX(version), COUNT(*) FROM schema_version`).Scan(&version, &rows); err != nil {
		t.Fatalf("read schema_version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}
	if rows != len(migrations) {
		t.Errorf("schema_version rows = %d, want %d", rows, len(migrations))
	}
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO sessions (id, goal, complexity, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"rolled-back", "goal", "complex", "2025-03-01T00:00:00Z", "2025-03-01T00:00:00Z"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction error = %v, want %v", err, boom)
	}

	s, err := db.GetSession("rolled-back")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s != nil {
		t.Error("insert survived a failed transaction")
	}
}

func TestProjectDBPath(t *testing.T) {
	got := ProjectDBPath("/work/site")
	if want := filepath.Join("/work/site", ".stepwise", "state.db"); got != want {
		t.Errorf("ProjectDBPath() = %q, want %q", got, want)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2025, 6, 2, 13, 4, 5, 999, time.FixedZone("CEST", 2*3600))

	out, err := parseTime(formatTime(in))
	if err != nil {
		t.Fatalf("parseTime: %v", err)
	}
	if !out.Equal(in.Truncate(time.Second)) {
		t.Errorf("round trip = %v, want %v", out, in.Truncate(time.Second))
	}
	if out.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", out.Location())
	}
}
