package orchestrator

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

func newTasks(titles ...string) []models.Task {
	tasks := make([]models.Task, len(titles))
	for i, title := range titles {
		tasks[i] = models.Task{
			ID:          i + 1,
			Title:       title,
			Description: "do " + title,
			Status:      models.TaskStatusPending,
			Confirmed:   true,
		}
	}
	return tasks
}

func newOrchestrator(t *testing.T, titles ...string) *Orchestrator {
	t.Helper()
	o := New(session.New())
	if len(titles) > 0 {
		require.NoError(t, o.AcceptDecomposition(newTasks(titles...)))
	}
	return o
}

type fakeRecorder struct {
	mu        sync.Mutex
	records   []models.ExecutionRecord
	snapshots int
	err       error
}

func (f *fakeRecorder) RecordExecution(_ string, rec models.ExecutionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakeRecorder) SaveSnapshot(string, session.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	return f.err
}

func TestSelectNext_NeverReturnsNonPending(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.TaskStatus
		wantID   int
	}{
		{"all pending", []models.TaskStatus{"pending", "pending"}, 1},
		{"first completed", []models.TaskStatus{"completed", "pending"}, 2},
		{"first failed", []models.TaskStatus{"failed", "pending", "pending"}, 2},
		{"middle pending", []models.TaskStatus{"completed", "pending", "failed"}, 2},
		{"none pending", []models.TaskStatus{"completed", "failed"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := newTasks(make([]string, len(tt.statuses))...)
			for i := range tasks {
				tasks[i].Title = string(rune('A' + i))
				tasks[i].Description = "x"
				tasks[i].Status = tt.statuses[i]
			}
			st, err := session.Restore(session.Snapshot{ConfirmedTaskList: tasks, TaskDecompositionComplete: true})
			require.NoError(t, err)
			o := New(st)

			got, err := o.SelectNext()
			require.NoError(t, err)
			if tt.wantID == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
			assert.True(t, got.IsPending())

			id, held := st.Current()
			assert.True(t, held)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestSelectNext_ResumesCurrent(t *testing.T) {
	o := newOrchestrator(t, "A", "B")

	first, err := o.SelectNext()
	require.NoError(t, err)
	again, err := o.SelectNext()
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
}

func TestSelectNext_OrderAfterCompletion(t *testing.T) {
	o := newOrchestrator(t, "A", "B", "C")

	a, err := o.SelectNext()
	require.NoError(t, err)
	require.NoError(t, o.Apply(models.VerdictCompleted, *a, "task complete"))

	b, err := o.SelectNext()
	require.NoError(t, err)
	assert.Equal(t, "B", b.Title)
}

func TestApply_Indeterminate(t *testing.T) {
	o := newOrchestrator(t, "A")
	a, err := o.SelectNext()
	require.NoError(t, err)

	require.NoError(t, o.Apply(models.VerdictIndeterminate, *a, "thinking..."))

	task, _ := o.State().Task(1)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Nil(t, task.ExecutionResult)
	assert.Empty(t, o.State().Records())
	id, held := o.State().Current()
	assert.True(t, held)
	assert.Equal(t, 1, id)
}

func TestApply_TruncatesStoredResult(t *testing.T) {
	o := newOrchestrator(t, "A")
	a, err := o.SelectNext()
	require.NoError(t, err)

	output := strings.Repeat("x", 700) + " task complete"
	require.NoError(t, o.Apply(models.VerdictCompleted, *a, output))

	task, _ := o.State().Task(1)
	assert.Len(t, task.Result(), models.MaxResultLength)
	records := o.State().Records()
	require.Len(t, records, 1)
	assert.Equal(t, output, records[0].ExecutionResult)
}

func TestApply_RejectsTaskNotHoldingSlot(t *testing.T) {
	o := newOrchestrator(t, "A", "B", "C")
	a, err := o.SelectNext()
	require.NoError(t, err)
	c, _ := o.State().Task(3)

	err = o.Apply(models.VerdictCompleted, c, "task complete")
	assert.ErrorIs(t, err, ErrNotCurrent)
	assert.NotErrorIs(t, err, session.ErrCorruptState)
	assert.NoError(t, o.Halted())

	got, _ := o.State().Task(3)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	id, held := o.State().Current()
	require.True(t, held)
	assert.Equal(t, a.ID, id)
	assert.Empty(t, o.State().Records())
}

func TestApply_WithoutClaimIsRejected(t *testing.T) {
	o := newOrchestrator(t, "A")
	a, _ := o.State().Task(1)

	assert.ErrorIs(t, o.Apply(models.VerdictFailed, a, "failed"), ErrNotCurrent)
	assert.ErrorIs(t, o.Apply(models.VerdictIndeterminate, a, "hmm"), ErrNotCurrent)
	assert.NoError(t, o.Halted())
}

func TestApply_DuplicateDoesNotHalt(t *testing.T) {
	o := newOrchestrator(t, "A", "B")
	a, err := o.SelectNext()
	require.NoError(t, err)
	require.NoError(t, o.Apply(models.VerdictCompleted, *a, "task complete"))

	err = o.Apply(models.VerdictCompleted, *a, "task complete")
	assert.ErrorIs(t, err, ErrNotCurrent)
	assert.NoError(t, o.Halted())
	assert.Len(t, o.State().Records(), 1)

	turn, err := o.Next()
	require.NoError(t, err)
	require.Equal(t, DecisionContinue, turn.Decision)
	assert.Equal(t, 2, turn.Task.ID)
}

func TestLoopDecision(t *testing.T) {
	o := New(session.New())
	assert.Equal(t, DecisionEscalateEmpty, o.LoopDecision())

	o = newOrchestrator(t, "A", "B")
	assert.Equal(t, DecisionContinue, o.LoopDecision())

	for i := 0; i < 2; i++ {
		task, err := o.SelectNext()
		require.NoError(t, err)
		require.NoError(t, o.Apply(models.VerdictFailed, *task, "failed"))
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, DecisionEscalateDone, o.LoopDecision())
	}
}

func TestNextReport_PartialFailure(t *testing.T) {
	o := newOrchestrator(t, "A", "B")

	turn, err := o.Next()
	require.NoError(t, err)
	require.Equal(t, DecisionContinue, turn.Decision)
	assert.Equal(t, "A", turn.Task.Title)

	verdict, err := o.Report("I cannot complete this")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictFailed, verdict)

	turn, err = o.Next()
	require.NoError(t, err)
	require.Equal(t, DecisionContinue, turn.Decision)
	assert.Equal(t, "B", turn.Task.Title)
	require.Len(t, turn.Context.Prior, 1)
	assert.Equal(t, models.TaskStatusFailed, turn.Context.Prior[0].Status)

	_, err = o.Report("✅ Task complete")
	require.NoError(t, err)

	turn, err = o.Next()
	require.NoError(t, err)
	assert.Equal(t, DecisionEscalateDone, turn.Decision)
	assert.Contains(t, turn.Instruction, "1 completed, 1 failed")

	a, _ := o.State().Task(1)
	b, _ := o.State().Task(2)
	assert.Equal(t, models.TaskStatusFailed, a.Status)
	assert.Equal(t, models.TaskStatusCompleted, b.Status)
}

func TestNext_IndeterminateRedispatchesSameTask(t *testing.T) {
	o := newOrchestrator(t, "A", "B")

	first, err := o.Next()
	require.NoError(t, err)
	_, err = o.Report("still looking into it")
	require.NoError(t, err)

	second, err := o.Next()
	require.NoError(t, err)
	assert.Equal(t, first.Task.ID, second.Task.ID)
}

func TestNext_EmptyList(t *testing.T) {
	o := New(session.New())
	turn, err := o.Next()
	require.NoError(t, err)
	assert.Equal(t, DecisionEscalateEmpty, turn.Decision)
	assert.Nil(t, turn.Task)
}

func TestReport_NoCurrentTask(t *testing.T) {
	o := newOrchestrator(t, "A")
	_, err := o.Report("task complete")
	assert.ErrorIs(t, err, ErrNoCurrentTask)
}

func TestBuildContext_BoundsPriorResults(t *testing.T) {
	o := New(session.New(), WithConfig(Config{ContextEntries: 2, ContextResultLimit: 10}))
	require.NoError(t, o.AcceptDecomposition(newTasks("A", "B", "C", "D")))

	for i := 0; i < 3; i++ {
		task, err := o.SelectNext()
		require.NoError(t, err)
		require.NoError(t, o.Apply(models.VerdictCompleted, *task, strings.Repeat("r", 50)+" task complete"))
	}

	d, err := o.SelectNext()
	require.NoError(t, err)
	ec := o.BuildContext(*d)

	require.Len(t, ec.Prior, 2)
	assert.Equal(t, 2, ec.Prior[0].TaskID)
	assert.Equal(t, 3, ec.Prior[1].TaskID)
	assert.Len(t, ec.Prior[0].Result, 10)
	assert.Equal(t, "D", ec.Task.Title)
}

func TestAcceptDecomposition_Policies(t *testing.T) {
	t.Run("replace", func(t *testing.T) {
		o := newOrchestrator(t, "A", "B")
		task, err := o.SelectNext()
		require.NoError(t, err)
		require.NoError(t, o.Apply(models.VerdictCompleted, *task, "done ✅"))

		require.NoError(t, o.AcceptDecomposition(newTasks("X")))

		tasks := o.State().Tasks()
		require.Len(t, tasks, 1)
		assert.Equal(t, "X", tasks[0].Title)
		assert.Empty(t, o.State().Records())
	})

	t.Run("reject", func(t *testing.T) {
		o := New(session.New(), WithConfig(Config{OnRedecompose: RedecomposeReject}))
		require.NoError(t, o.AcceptDecomposition(newTasks("A")))

		err := o.AcceptDecomposition(newTasks("X"))
		assert.ErrorIs(t, err, ErrAlreadyDecomposed)
		assert.Equal(t, "A", o.State().Tasks()[0].Title)
	})

	t.Run("empty is ignored", func(t *testing.T) {
		o := New(session.New())
		require.NoError(t, o.AcceptDecomposition(nil))
		assert.False(t, o.State().DecompositionComplete())
	})
}

func TestAcceptResponse(t *testing.T) {
	o := New(session.New())

	n, err := o.AcceptResponse("Working on a plan...")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, o.State().DecompositionComplete())

	n, err = o.AcceptResponse("## 执行步骤\n1. **Step1**: do X\n2. **Step2**: do Y")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, o.State().DecompositionComplete())
}

func TestParseRedecomposePolicy(t *testing.T) {
	p, err := ParseRedecomposePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RedecomposeReplace, p)

	p, err = ParseRedecomposePolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, RedecomposeReject, p)

	_, err = ParseRedecomposePolicy("append")
	assert.Error(t, err)
}

func TestNext_ResumesRestoredSlot(t *testing.T) {
	two := 2
	st, err := session.Restore(session.Snapshot{
		ConfirmedTaskList:         newTasks("A", "B"),
		CurrentExecutingTaskID:    &two,
		TaskDecompositionComplete: true,
	})
	require.NoError(t, err)
	o := New(st)

	turn, err := o.Next()
	require.NoError(t, err)
	require.Equal(t, DecisionContinue, turn.Decision)
	assert.Equal(t, 2, turn.Task.ID)
	assert.NoError(t, o.Halted())
}

func TestRecorderAndMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	metrics := NewMetrics(prometheus.NewRegistry())
	o := New(session.New(), WithRecorder(rec), WithMetrics(metrics), WithSessionID("s1"))
	require.NoError(t, o.AcceptDecomposition(newTasks("A", "B")))

	_, err := o.Next()
	require.NoError(t, err)
	_, err = o.Report("hmm")
	require.NoError(t, err)
	_, err = o.Report("task completed")
	require.NoError(t, err)
	_, err = o.Next()
	require.NoError(t, err)
	_, err = o.Report("❌ unable to complete")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		turn, err := o.Next()
		require.NoError(t, err)
		assert.Equal(t, DecisionEscalateDone, turn.Decision)
	}

	assert.Len(t, rec.records, 2)
	assert.GreaterOrEqual(t, rec.snapshots, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DispatchesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.VerdictsTotal.WithLabelValues("indeterminate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EscalationsTotal.WithLabelValues("escalate_done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DecompositionsTotal.WithLabelValues("accepted")))
}

func TestRecorderErrorsDoNotStopLoop(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	o := New(session.New(), WithRecorder(rec))
	require.NoError(t, o.AcceptDecomposition(newTasks("A")))

	_, err := o.Next()
	require.NoError(t, err)
	_, err = o.Report("task complete")
	require.NoError(t, err)

	turn, err := o.Next()
	require.NoError(t, err)
	assert.Equal(t, DecisionEscalateDone, turn.Decision)
}
