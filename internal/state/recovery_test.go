package state

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

func TestCheckForInterrupted_NoSessions(t *testing.T) {
	rm := NewRecoveryManager(openTestDB(t))

	info, err := rm.CheckForInterrupted()
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}

func TestCheckForInterrupted_SkipsFinishedAndEmpty(t *testing.T) {
	db := openTestDB(t)
	createTestSession(t, db, "completed", SessionCompleted, time.Now())
	createTestSession(t, db, "empty-active", SessionActive, time.Now())

	info, err := NewRecoveryManager(db).CheckForInterrupted()
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}

func TestCheckForInterrupted_ActiveWithPending(t *testing.T) {
	db := openTestDB(t)
	createTestSession(t, db, "interrupted", SessionActive, time.Now())

	st := session.New()
	if err := st.ReplaceTasks(testTasks()); err != nil {
		t.Fatalf("ReplaceTasks failed: %v", err)
	}
	if _, err := st.Settle(1, models.TaskStatusFailed, "failed", 500); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if _, err := st.ClaimCurrent(2); err != nil {
		t.Fatalf("ClaimCurrent failed: %v", err)
	}
	if err := db.SaveSnapshot("interrupted", st.Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	info, err := NewRecoveryManager(db).CheckForInterrupted()
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if info == nil {
		t.Fatal("expected interrupted session")
	}
	if info.SessionID != "interrupted" || info.Failed != 1 || info.Pending != 1 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.CurrentTaskID == nil || *info.CurrentTaskID != 2 {
		t.Errorf("CurrentTaskID = %v, want 2", info.CurrentTaskID)
	}
}

func TestResume(t *testing.T) {
	db := openTestDB(t)
	rm := NewRecoveryManager(db)

	if _, _, err := rm.Resume("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Resume(missing) error = %v, want ErrSessionNotFound", err)
	}

	createTestSession(t, db, "finished", SessionCompleted, time.Now())
	if _, _, err := rm.Resume("finished"); err == nil {
		t.Error("Resume of a completed session should fail")
	}

	createTestSession(t, db, "live", SessionActive, time.Now())
	s, st, err := rm.Resume("live")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if s.ID != "live" || st == nil {
		t.Errorf("unexpected resume result: %+v %v", s, st)
	}
}

func TestClean_MarksSessionCanceled(t *testing.T) {
	db := openTestDB(t)
	createTestSession(t, db, "to-clean", SessionActive, time.Now())

	if err := NewRecoveryManager(db).Clean("to-clean"); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	got, _ := db.GetSession("to-clean")
	if got.Status != SessionCanceled {
		t.Errorf("Status = %q, want canceled", got.Status)
	}
}
