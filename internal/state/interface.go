package state

import (
	"io"

	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// SessionStore handles session-related persistence operations.
type SessionStore interface {
	CreateSession(s *Session) error
	GetSession(id string) (*Session, error)
	UpdateSessionStatus(id string, status SessionStatus) error
	ListSessions(status *SessionStatus) ([]Session, error)
	GetActiveSession() (*Session, error)
}

// SnapshotStore persists and restores session state.
type SnapshotStore interface {
	SaveSnapshot(sessionID string, snap session.Snapshot) error
	LoadState(sessionID string) (*session.State, error)
}

// RecordStore handles the append-only execution log.
type RecordStore interface {
	RecordExecution(sessionID string, rec models.ExecutionRecord) error
	ListExecutionRecords(sessionID string) ([]StoredRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes the archive interfaces.
type StateStore interface {
	io.Closer
	Migrator
	SessionStore
	SnapshotStore
	RecordStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore    = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ SessionStore  = (*DB)(nil)
	_ SnapshotStore = (*DB)(nil)
	_ RecordStore   = (*DB)(nil)
)
