package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// SessionStatus represents the status of an archived session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCanceled  SessionStatus = "canceled"
)

// SessionMode records which driver ran the session.
type SessionMode string

const (
	ModeRun     SessionMode = "run"
	ModeConfirm SessionMode = "confirm"
	ModeMCP     SessionMode = "mcp"
)

// Session is an archived stepwise session.
type Session struct {
	ID         string            `json:"id"`
	Goal       string            `json:"goal"`
	Complexity models.Complexity `json:"complexity"`
	Mode       SessionMode       `json:"mode"`
	Status     SessionStatus     `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// StoredRecord is an execution record with its archive metadata.
type StoredRecord struct {
	Seq        int64
	SessionID  string
	RecordedAt time.Time
	models.ExecutionRecord
}

// Session CRUD operations

// CreateSession creates a new session.
func (db *DB) CreateSession(s *Session) error {
	if s.Mode == "" {
		s.Mode = ModeRun
	}
	if s.Status == "" {
		s.Status = SessionActive
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.StartedAt
	}

	_, err := db.Exec(`
		INSERT INTO sessions (id, goal, complexity, mode, status, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Goal, string(s.Complexity), string(s.Mode), string(s.Status), formatTime(s.StartedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. It returns nil when none exists.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT id, goal, complexity, mode, status, started_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// UpdateSessionStatus sets the status of a session.
func (db *DB) UpdateSessionStatus(id string, status SessionStatus) error {
	result, err := db.Exec(`
		UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireOneRow(result, id)
}

// DeleteSession deletes a session and its execution records.
func (db *DB) DeleteSession(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM execution_records WHERE session_id = ?", id); err != nil {
			return fmt.Errorf("delete execution records: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// ListSessions lists sessions, newest first, optionally filtered by status.
func (db *DB) ListSessions(status *SessionStatus) ([]Session, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, goal, complexity, mode, status, started_at, updated_at
			FROM sessions WHERE status = ? ORDER BY started_at DESC
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, goal, complexity, mode, status, started_at, updated_at
			FROM sessions ORDER BY started_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetActiveSession returns the most recent active session, if any.
func (db *DB) GetActiveSession() (*Session, error) {
	status := SessionActive
	sessions, err := db.ListSessions(&status)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// Snapshot operations

// SaveSnapshot stores the serialized state of a session.
func (db *DB) SaveSnapshot(sessionID string, snap session.Snapshot) error {
	st, err := session.Restore(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	data, err := st.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	result, err := db.Exec(`
		UPDATE sessions SET snapshot = ?, updated_at = ? WHERE id = ?
	`, string(data), formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return requireOneRow(result, sessionID)
}

// LoadState restores the validated state of a session. A session that
// never saved a snapshot yields an empty state.
func (db *DB) LoadState(sessionID string) (*session.State, error) {
	var data sql.NullString
	err := db.QueryRow(`SELECT snapshot FROM sessions WHERE id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !data.Valid || data.String == "" {
		return session.New(), nil
	}
	st, err := session.Decode([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	return st, nil
}

// Execution record operations

// RecordExecution appends an execution record to a session's log.
func (db *DB) RecordExecution(sessionID string, rec models.ExecutionRecord) error {
	_, err := db.Exec(`
		INSERT INTO execution_records (session_id, task_id, task_title, task_description, execution_result, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sessionID, rec.TaskID, rec.TaskTitle, rec.TaskDescription, rec.ExecutionResult, string(rec.Status), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// ListExecutionRecords returns a session's records in append order.
func (db *DB) ListExecutionRecords(sessionID string) ([]StoredRecord, error) {
	rows, err := db.Query(`
		SELECT seq, session_id, task_id, task_title, task_description, execution_result, status, recorded_at
		FROM execution_records WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list execution records: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var r StoredRecord
		var recordedAt string
		if err := rows.Scan(&r.Seq, &r.SessionID, &r.TaskID, &r.TaskTitle, &r.TaskDescription,
			&r.ExecutionResult, &r.Status, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan execution record: %w", err)
		}
		r.RecordedAt, _ = parseTime(recordedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var startedAt, updatedAt string
	if err := row.Scan(&s.ID, &s.Goal, &s.Complexity, &s.Mode, &s.Status, &startedAt, &updatedAt); err != nil {
		return nil, err
	}
	s.StartedAt, _ = parseTime(startedAt)
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}

func requireOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// FinalStatus is the session status for a settled task list: failed when
// any task failed, completed otherwise.
func FinalStatus(tasks []models.Task) SessionStatus {
	for _, t := range tasks {
		if t.Status == models.TaskStatusFailed {
			return SessionFailed
		}
	}
	return SessionCompleted
}
