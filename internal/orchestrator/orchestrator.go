package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/decompose"
	"github.com/ShayCichocki/stepwise/internal/outcome"
	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// ErrAlreadyDecomposed is returned by AcceptDecomposition under the reject
// policy when the session already has a task list.
var ErrAlreadyDecomposed = errors.New("session already has a task list")

// ErrNotCurrent is returned by Apply for a task that does not hold the
// current-task slot.
var ErrNotCurrent = errors.New("task is not the current task")

// ErrNoCurrentTask is returned by Report when no task holds the slot.
var ErrNoCurrentTask = errors.New("no task is currently executing")

// Decision is the outcome of LoopDecision.
type Decision string

const (
	// DecisionContinue means a pending task remains.
	DecisionContinue Decision = "continue"
	// DecisionEscalateDone means every task reached a terminal status.
	DecisionEscalateDone Decision = "escalate_done"
	// DecisionEscalateEmpty means there is no task list.
	DecisionEscalateEmpty Decision = "escalate_empty"
)

// Terminal reports whether d ends the loop.
func (d Decision) Terminal() bool {
	return d == DecisionEscalateDone || d == DecisionEscalateEmpty
}

// Turn is what Next hands to the external driver.
type Turn struct {
	Decision Decision
	// Task and Context are set when Decision is DecisionContinue.
	Task    *models.Task
	Context ExecutionContext
	// Instruction is the executor instruction, or the final summary once
	// the loop has escalated.
	Instruction string
}

// Orchestrator is the task lifecycle state machine for one session.
type Orchestrator struct {
	state      *session.State
	cfg        Config
	classifier outcome.Classifier
	parser     decompose.Parser
	logger     *zap.Logger
	metrics    *Metrics
	recorder   Recorder

	mu        sync.Mutex
	halted    error
	escalated bool

	// applyMu makes the slot check and settle in Apply one step.
	applyMu sync.Mutex
}

// New creates an Orchestrator over st.
func New(st *session.State, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:      st,
		cfg:        DefaultConfig(),
		classifier: outcome.Default,
		parser:     decompose.DefaultParser,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("session", o.cfg.SessionID))
	return o
}

// State returns the underlying session state.
func (o *Orchestrator) State() *session.State {
	return o.state
}

// Config returns the active configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Halted returns the structural error that stopped the loop, if any.
func (o *Orchestrator) Halted() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.halted
}

// AcceptResponse parses a decomposition response and accepts the tasks it
// contains. It returns the number of tasks accepted; zero means the
// response held no step list yet.
func (o *Orchestrator) AcceptResponse(text string) (int, error) {
	tasks := o.parser.Extract(text)
	if len(tasks) == 0 {
		o.metrics.decomposition("empty")
		o.logger.Debug("decomposition not ready", zap.Bool("marker_present", o.parser.HasMarker(text)))
		return 0, nil
	}
	if err := o.AcceptDecomposition(tasks); err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// AcceptDecomposition installs tasks as the session's task list and marks
// decomposition complete. An empty list is ignored. When a list already
// exists the configured RedecomposePolicy applies.
func (o *Orchestrator) AcceptDecomposition(tasks []models.Task) error {
	if len(tasks) == 0 {
		o.metrics.decomposition("empty")
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.DecompositionComplete() {
		if o.cfg.OnRedecompose == RedecomposeReject {
			o.metrics.decomposition("rejected")
			o.logger.Warn("decomposition rejected", zap.Int("tasks", len(tasks)))
			return ErrAlreadyDecomposed
		}
		o.logger.Info("replacing task list", zap.Int("previous", o.state.Len()), zap.Int("tasks", len(tasks)))
	}

	if err := o.state.ReplaceTasks(tasks); err != nil {
		return fmt.Errorf("accept decomposition: %w", err)
	}
	o.halted = nil
	o.escalated = false
	o.metrics.decomposition("accepted")
	o.logger.Info("decomposition accepted", zap.Int("tasks", len(tasks)))
	o.save()
	return nil
}

// SelectNext returns the task to dispatch. A task already holding the slot
// is resumed; otherwise the first pending task in list order is claimed.
// It returns nil when nothing is pending.
func (o *Orchestrator) SelectNext() (*models.Task, error) {
	if err := o.Halted(); err != nil {
		return nil, err
	}

	for {
		if id, ok := o.state.Current(); ok {
			t, found := o.state.Task(id)
			if !found {
				return nil, o.halt(fmt.Errorf("%w: current slot points at missing task %d", session.ErrCorruptState, id))
			}
			if !t.IsPending() {
				return nil, o.halt(fmt.Errorf("%w: current slot points at %s task %d", session.ErrCorruptState, t.Status, id))
			}
			return &t, nil
		}

		next := firstPending(o.state.Tasks())
		if next == nil {
			return nil, nil
		}

		claimed, err := o.state.ClaimCurrent(next.ID)
		if errors.Is(err, session.ErrTaskNotPending) {
			continue
		}
		if err != nil {
			return nil, o.halt(fmt.Errorf("%w: %v", session.ErrCorruptState, err))
		}
		if claimed {
			o.logger.Debug("task claimed", zap.Int("task_id", next.ID), zap.String("title", next.Title))
			return next, nil
		}
	}
}

// BuildContext bundles task with the most recent execution records.
func (o *Orchestrator) BuildContext(task models.Task) ExecutionContext {
	records := o.state.RecentRecords(o.cfg.ContextEntries)
	return ExecutionContext{
		Task:  task.Clone(),
		Prior: newPriorResults(records, o.cfg.ContextResultLimit),
	}
}

// Interpret classifies collaborator output.
func (o *Orchestrator) Interpret(text string) models.Verdict {
	return o.classifier.Classify(text)
}

// Apply transitions task according to verdict. task must hold the
// current-task slot. Completed and failed settle the task, append a record
// with the full output, and release the slot. Indeterminate changes nothing.
func (o *Orchestrator) Apply(verdict models.Verdict, task models.Task, output string) error {
	if err := o.Halted(); err != nil {
		return err
	}

	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	if id, ok := o.state.Current(); !ok || id != task.ID {
		return fmt.Errorf("apply %s to task %d: %w", verdict, task.ID, ErrNotCurrent)
	}

	o.metrics.verdict(verdict)

	status, terminal := verdict.Status()
	if !terminal {
		o.logger.Info("verdict indeterminate, task stays current", zap.Int("task_id", task.ID))
		return nil
	}

	rec, err := o.state.Settle(task.ID, status, output, o.cfg.ResultLimit)
	if errors.Is(err, session.ErrTaskNotPending) {
		return fmt.Errorf("apply %s: %w", verdict, err)
	}
	if err != nil {
		return o.halt(fmt.Errorf("%w: %v", session.ErrCorruptState, err))
	}

	o.metrics.transition(status)
	o.logger.Info("task settled",
		zap.Int("task_id", task.ID),
		zap.String("title", task.Title),
		zap.String("status", string(status)))

	if o.recorder != nil {
		if err := o.recorder.RecordExecution(o.cfg.SessionID, rec); err != nil {
			o.logger.Warn("record execution failed", zap.Error(err))
		}
	}
	o.save()
	return nil
}

// LoopDecision reports whether the loop continues.
func (o *Orchestrator) LoopDecision() Decision {
	tasks := o.state.Tasks()
	if len(tasks) == 0 {
		return DecisionEscalateEmpty
	}
	if firstPending(tasks) == nil {
		return DecisionEscalateDone
	}
	return DecisionContinue
}

// Next advances the loop by one turn. On continue it claims or resumes the
// current task and returns its instruction; on escalation it returns the
// final summary.
func (o *Orchestrator) Next() (Turn, error) {
	if err := o.Halted(); err != nil {
		return Turn{}, err
	}
	if err := o.state.Validate(); err != nil {
		return Turn{}, o.halt(err)
	}

	decision := o.LoopDecision()
	if decision.Terminal() {
		o.escalate(decision)
		return Turn{
			Decision:    decision,
			Instruction: RenderSummary(decision, o.state.Tasks()),
		}, nil
	}

	task, err := o.SelectNext()
	if err != nil {
		return Turn{}, err
	}
	if task == nil {
		// Settled between LoopDecision and SelectNext.
		return o.Next()
	}

	ec := o.BuildContext(*task)
	o.metrics.dispatch()
	o.logger.Info("dispatching task",
		zap.Int("task_id", task.ID),
		zap.String("title", task.Title),
		zap.Int("prior", len(ec.Prior)))

	return Turn{
		Decision:    DecisionContinue,
		Task:        task,
		Context:     ec,
		Instruction: RenderInstruction(ec, o.cfg.Tools),
	}, nil
}

// Report interprets output for the current task and applies the verdict.
func (o *Orchestrator) Report(output string) (models.Verdict, error) {
	return o.ReportVerdict(o.Interpret(output), output)
}

// ReportVerdict applies an already classified verdict to the current task.
func (o *Orchestrator) ReportVerdict(verdict models.Verdict, output string) (models.Verdict, error) {
	if err := o.Halted(); err != nil {
		return "", err
	}
	if !verdict.Valid() {
		return "", fmt.Errorf("unknown verdict %q", verdict)
	}

	task, ok, err := o.state.CurrentTask()
	if err != nil {
		return "", o.halt(err)
	}
	if !ok {
		return "", ErrNoCurrentTask
	}

	if err := o.Apply(verdict, task, output); err != nil {
		return "", err
	}
	return verdict, nil
}

// Summary renders the current state as a final report.
func (o *Orchestrator) Summary() string {
	return RenderSummary(o.LoopDecision(), o.state.Tasks())
}

func (o *Orchestrator) escalate(d Decision) {
	o.mu.Lock()
	first := !o.escalated
	o.escalated = true
	o.mu.Unlock()

	if !first {
		return
	}
	o.metrics.escalation(d)
	o.logger.Info("loop escalated", zap.String("decision", string(d)))
	o.save()
}

func (o *Orchestrator) halt(err error) error {
	o.mu.Lock()
	if o.halted == nil {
		o.halted = err
	}
	o.mu.Unlock()
	o.logger.Error("loop halted", zap.Error(err))
	return err
}

func (o *Orchestrator) save() {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveSnapshot(o.cfg.SessionID, o.state.Snapshot()); err != nil {
		o.logger.Warn("save snapshot failed", zap.Error(err))
	}
}

func firstPending(tasks []models.Task) *models.Task {
	for i := range tasks {
		if tasks[i].IsPending() {
			t := tasks[i]
			return &t
		}
	}
	return nil
}
