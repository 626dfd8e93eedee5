package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/stepwise/internal/complexity"
	"github.com/ShayCichocki/stepwise/internal/decompose"
	"github.com/ShayCichocki/stepwise/internal/llm/llmtest"
	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// scriptedExecutor answers each instruction with the next scripted output.
type scriptedExecutor struct {
	mu           sync.Mutex
	outputs      []string
	errs         []error
	instructions []string
}

func (s *scriptedExecutor) Execute(_ context.Context, instruction string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.instructions)
	s.instructions = append(s.instructions, instruction)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], err
	}
	return "", err
}

func TestRunner_RunsToCompletion(t *testing.T) {
	o := newOrchestrator(t, "A", "B", "C")
	exec := &scriptedExecutor{outputs: []string{
		"✅ Task complete",
		"cannot complete: missing data",
		"task completed",
	}}

	var steps []Step
	res, err := NewRunner(o, exec, WithObserver(func(s Step) { steps = append(steps, s) })).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DecisionEscalateDone, res.Decision)
	assert.Equal(t, 3, res.Turns)
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{steps[0].Task.Title, steps[1].Task.Title, steps[2].Task.Title})
	assert.Equal(t, models.VerdictFailed, steps[1].Verdict)
	assert.Contains(t, res.Summary, "2 completed, 1 failed")

	assert.Contains(t, exec.instructions[1], "**Task title**: B")
	assert.Contains(t, exec.instructions[1], "[1] A (completed)")
}

func TestRunner_ExecutorErrorRetriesSameTask(t *testing.T) {
	o := newOrchestrator(t, "A")
	exec := &scriptedExecutor{
		outputs: []string{"", "task complete"},
		errs:    []error{errors.New("timeout"), nil},
	}

	var steps []Step
	res, err := NewRunner(o, exec, WithObserver(func(s Step) { steps = append(steps, s) })).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Turns)
	require.Len(t, steps, 2)
	assert.Error(t, steps[0].Err)
	assert.Equal(t, models.VerdictIndeterminate, steps[0].Verdict)
	assert.Equal(t, steps[0].Task.ID, steps[1].Task.ID)
	assert.Equal(t, exec.instructions[0], exec.instructions[1])
}

func TestRunner_MaxTurns(t *testing.T) {
	o := newOrchestrator(t, "A")
	exec := ExecutorFunc(func(context.Context, string) (string, error) { return "still going", nil })

	res, err := NewRunner(o, exec, WithMaxTurns(3)).Run(context.Background())
	assert.ErrorIs(t, err, ErrMaxTurns)
	assert.Equal(t, 3, res.Turns)
	assert.Equal(t, DecisionContinue, res.Decision)
}

func TestRunner_EmptyList(t *testing.T) {
	o := New(session.New())
	res, err := NewRunner(o, ExecutorFunc(func(context.Context, string) (string, error) {
		t.Fatal("executor should not be called")
		return "", nil
	})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DecisionEscalateEmpty, res.Decision)
	assert.Equal(t, "No tasks to execute.", res.Summary)
}

func TestRunner_Stop(t *testing.T) {
	o := newOrchestrator(t, "A", "B")
	pause := NewPauseController(nil)
	exec := ExecutorFunc(func(context.Context, string) (string, error) {
		pause.Stop()
		return "task complete", nil
	})

	res, err := NewRunner(o, exec, WithPauseController(pause)).Run(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 1, res.Turns)

	b, _ := o.State().Task(2)
	assert.Equal(t, models.TaskStatusPending, b.Status)
}

func TestRunner_ContextCancelledWhilePaused(t *testing.T) {
	o := newOrchestrator(t, "A")
	pause := NewPauseController(nil)
	pause.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewRunner(o, &scriptedExecutor{}, WithPauseController(pause)).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPauseController_Resume(t *testing.T) {
	p := NewPauseController(nil)
	p.Pause()
	assert.True(t, p.IsPaused())

	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	p.Resume()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Resume")
	}
}

func TestPauseController_StopReleasesWaiter(t *testing.T) {
	p := NewPauseController(nil)
	p.Pause()

	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(context.Background()) }()

	p.Stop()
	p.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Stop")
	}
	assert.True(t, p.IsStopped())
}

func TestResponderExecutor(t *testing.T) {
	responder := llmtest.New("✅ Task complete")
	out, err := ResponderExecutor{Responder: responder}.Execute(context.Background(), "do it")
	require.NoError(t, err)
	assert.Equal(t, "✅ Task complete", out)
	assert.Equal(t, DefaultExecutorSystem, responder.Requests()[0].System)
}

func TestCoordinator_Simple(t *testing.T) {
	responder := llmtest.New("42")
	c := NewCoordinator(complexity.NewDefault(), decompose.New(responder), &scriptedExecutor{})

	out, err := c.Handle(context.Background(), "what is the answer?", New(session.New()))
	require.NoError(t, err)
	assert.Equal(t, models.ComplexitySimple, out.Classification.Complexity)
	assert.Equal(t, "42", out.Answer)
	assert.Nil(t, out.Run)
}

func TestCoordinator_Complex(t *testing.T) {
	responder := llmtest.New("## 执行步骤\n1. **Research**: find sources\n2. **Write**: draft the report")
	exec := &scriptedExecutor{outputs: []string{"task complete", "task complete"}}
	c := NewCoordinator(nil, decompose.New(responder), exec)

	goal := "research the topic, then write a report and also publish it"
	out, err := c.Handle(context.Background(), goal, New(session.New()))
	require.NoError(t, err)

	assert.Equal(t, models.ComplexityComplex, out.Classification.Complexity)
	require.NotNil(t, out.Decomposition)
	assert.Len(t, out.Decomposition.Tasks, 2)
	require.NotNil(t, out.Run)
	assert.Equal(t, DecisionEscalateDone, out.Run.Decision)
	assert.True(t, strings.HasPrefix(out.Run.Summary, "🎉"))
}

func TestCoordinator_ForceComplex(t *testing.T) {
	c := NewCoordinator(nil, decompose.New(llmtest.New()), nil, WithForceComplex(true))
	cls := c.Classify("what is the time?")
	assert.Equal(t, models.ComplexityComplex, cls.Complexity)
	assert.Equal(t, "forced", cls.Reason)
}

func TestCoordinator_PlanFailure(t *testing.T) {
	responder := llmtest.New("no plan here", "still no plan")
	c := NewCoordinator(nil, decompose.New(responder), &scriptedExecutor{}, WithForceComplex(true))

	out, err := c.Handle(context.Background(), "anything", New(session.New()))
	assert.ErrorIs(t, err, decompose.ErrNoSteps)
	assert.Nil(t, out.Run)
}
