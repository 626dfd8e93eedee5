package state

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// InterruptedSession describes an active session that still has pending
// tasks, typically left behind by a process that exited mid-run.
type InterruptedSession struct {
	SessionID    string
	Goal         string
	StartedAt    time.Time
	LastActivity time.Time
	Completed    int
	Failed       int
	Pending      int
	// CurrentTaskID is the task that held the slot when the run stopped.
	CurrentTaskID *int
}

// RecoveryManager finds and resolves interrupted sessions.
type RecoveryManager struct {
	db *DB
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db}
}

// CheckForInterrupted returns the most recent active session with pending
// tasks, or nil if there is none.
func (rm *RecoveryManager) CheckForInterrupted() (*InterruptedSession, error) {
	status := SessionActive
	sessions, err := rm.db.ListSessions(&status)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	for _, s := range sessions {
		st, err := rm.db.LoadState(s.ID)
		if err != nil {
			return nil, err
		}
		info := summarize(s, st)
		if info.Pending == 0 {
			continue
		}
		return info, nil
	}
	return nil, nil
}

// Resume loads the validated state of an active session for another run.
func (rm *RecoveryManager) Resume(sessionID string) (*Session, *session.State, error) {
	s, err := rm.db.GetSession(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.Status != SessionActive {
		return nil, nil, fmt.Errorf("session %s is %s, not resumable", sessionID, s.Status)
	}

	st, err := rm.db.LoadState(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return s, st, nil
}

// Clean marks an interrupted session canceled so it is no longer offered
// for recovery.
func (rm *RecoveryManager) Clean(sessionID string) error {
	s, err := rm.db.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err := rm.db.UpdateSessionStatus(sessionID, SessionCanceled); err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	return nil
}

func summarize(s Session, st *session.State) *InterruptedSession {
	info := &InterruptedSession{
		SessionID:    s.ID,
		Goal:         s.Goal,
		StartedAt:    s.StartedAt,
		LastActivity: s.UpdatedAt,
	}
	for _, t := range st.Tasks() {
		switch t.Status {
		case models.TaskStatusCompleted:
			info.Completed++
		case models.TaskStatusFailed:
			info.Failed++
		default:
			info.Pending++
		}
	}
	if id, ok := st.Current(); ok {
		info.CurrentTaskID = &id
	}
	return info
}
