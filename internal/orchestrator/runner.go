package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/llm"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// DefaultMaxTurns bounds a Runner when no limit is configured.
const DefaultMaxTurns = 50

// ErrMaxTurns is returned when a run exceeds its turn budget.
var ErrMaxTurns = errors.New("turn limit reached")

// Executor carries out one task instruction and returns its output text.
type Executor interface {
	Execute(ctx context.Context, instruction string) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, instruction string) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, instruction string) (string, error) {
	return f(ctx, instruction)
}

// ResponderExecutor executes instructions by prompting a language model.
type ResponderExecutor struct {
	Responder llm.Responder
	System    string
}

// DefaultExecutorSystem frames the model as a task executor.
const DefaultExecutorSystem = "You are a task executor. Carry out exactly the task you are given and report the result."

// Execute implements Executor.
func (e ResponderExecutor) Execute(ctx context.Context, instruction string) (string, error) {
	system := e.System
	if system == "" {
		system = DefaultExecutorSystem
	}
	return e.Responder.Respond(ctx, llm.Request{System: system, Prompt: instruction})
}

// Step describes one turn of a run, passed to the Runner's observer.
type Step struct {
	Turn    int
	Task    models.Task
	Output  string
	Verdict models.Verdict
	Err     error
}

// RunResult summarizes a finished run.
type RunResult struct {
	Decision Decision
	Summary  string
	Turns    int
	Tasks    []models.Task
}

// Runner drives an Orchestrator to escalation through an Executor.
type Runner struct {
	orch     *Orchestrator
	exec     Executor
	maxTurns int
	pause    *PauseController
	observe  func(Step)
	logger   *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxTurns bounds the number of dispatches.
func WithMaxTurns(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithPauseController lets an outside signal pause or stop the run.
func WithPauseController(p *PauseController) RunnerOption {
	return func(r *Runner) { r.pause = p }
}

// WithObserver is called after every turn.
func WithObserver(fn func(Step)) RunnerOption {
	return func(r *Runner) { r.observe = fn }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(orch *Orchestrator, exec Executor, opts ...RunnerOption) *Runner {
	r := &Runner{
		orch:     orch,
		exec:     exec,
		maxTurns: DefaultMaxTurns,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pause == nil {
		r.pause = NewPauseController(r.logger)
	}
	return r
}

// Run loops Next and Report until the orchestrator escalates. Executor
// errors are treated as indeterminate so the same task is dispatched again
// on the next turn.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	turns := 0
	for {
		if err := ctx.Err(); err != nil {
			return r.result(DecisionContinue, turns), err
		}
		if err := r.pause.WaitIfPaused(ctx); err != nil {
			return r.result(DecisionContinue, turns), err
		}

		turn, err := r.orch.Next()
		if err != nil {
			return r.result(DecisionContinue, turns), err
		}
		if turn.Decision.Terminal() {
			res := r.result(turn.Decision, turns)
			res.Summary = turn.Instruction
			return res, nil
		}

		if turns >= r.maxTurns {
			r.logger.Warn("turn limit reached", zap.Int("turns", turns))
			return r.result(DecisionContinue, turns), fmt.Errorf("%w after %d turns", ErrMaxTurns, turns)
		}
		turns++

		step := Step{Turn: turns, Task: *turn.Task}
		output, execErr := r.exec.Execute(ctx, turn.Instruction)
		if execErr != nil {
			if ctx.Err() != nil {
				return r.result(DecisionContinue, turns), ctx.Err()
			}
			r.logger.Warn("executor failed, task will be retried",
				zap.Int("task_id", turn.Task.ID),
				zap.Error(execErr))
			step.Err = execErr
			step.Verdict, err = r.orch.ReportVerdict(models.VerdictIndeterminate, "")
		} else {
			step.Output = output
			step.Verdict, err = r.orch.Report(output)
		}
		if err != nil {
			return r.result(DecisionContinue, turns), err
		}
		if r.observe != nil {
			r.observe(step)
		}
	}
}

func (r *Runner) result(d Decision, turns int) RunResult {
	return RunResult{
		Decision: d,
		Summary:  r.orch.Summary(),
		Turns:    turns,
		Tasks:    r.orch.State().Tasks(),
	}
}
