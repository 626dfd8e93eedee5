package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/outcome"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// Inquiry is the next question for the human, or the final report.
type Inquiry struct {
	Decision Decision
	// Task is set while Decision is DecisionContinue.
	Task      *models.Task
	Completed int
	Total     int
	Message   string
}

// Done reports whether the confirmation loop is over.
func (i Inquiry) Done() bool {
	return i.Decision.Terminal()
}

// Acknowledgement is the response to one human reply.
type Acknowledgement struct {
	Kind    outcome.ReplyKind
	Verdict models.Verdict
	Task    models.Task
	Message string
}

// Monitor runs the confirmation variant of the loop: the verdict for the
// current task comes from a human reply instead of execution output.
type Monitor struct {
	orch   *Orchestrator
	logger *zap.Logger
}

// NewMonitor creates a Monitor over orch.
func NewMonitor(orch *Orchestrator) *Monitor {
	return &Monitor{orch: orch, logger: orch.logger.Named("monitor")}
}

// NextInquiry selects the task to ask about. Asking again without a reply
// returns the same task.
func (m *Monitor) NextInquiry() (Inquiry, error) {
	if err := m.orch.Halted(); err != nil {
		return Inquiry{}, err
	}
	if err := m.orch.state.Validate(); err != nil {
		return Inquiry{}, m.orch.halt(err)
	}

	tasks := m.orch.state.Tasks()
	completed := countStatus(tasks, models.TaskStatusCompleted)

	decision := m.orch.LoopDecision()
	switch decision {
	case DecisionEscalateEmpty:
		m.orch.escalate(decision)
		return Inquiry{Decision: decision, Message: "No task list found. Decompose a goal first."}, nil
	case DecisionEscalateDone:
		m.orch.escalate(decision)
		return Inquiry{
			Decision:  decision,
			Completed: completed,
			Total:     len(tasks),
			Message:   RenderCompletionReport(tasks),
		}, nil
	}

	task, err := m.orch.SelectNext()
	if err != nil {
		return Inquiry{}, err
	}
	if task == nil {
		return m.NextInquiry()
	}

	return Inquiry{
		Decision:  DecisionContinue,
		Task:      task,
		Completed: completed,
		Total:     len(tasks),
		Message:   RenderInquiry(*task, completed, len(tasks)),
	}, nil
}

// HandleReply applies a human reply to the task being asked about.
func (m *Monitor) HandleReply(reply string) (Acknowledgement, error) {
	task, ok, err := m.orch.state.CurrentTask()
	if err != nil {
		return Acknowledgement{}, m.orch.halt(err)
	}
	if !ok {
		return Acknowledgement{}, ErrNoCurrentTask
	}

	kind := outcome.ClassifyReply(reply)
	verdict, err := m.orch.ReportVerdict(kind.Verdict(), reply)
	if err != nil {
		return Acknowledgement{}, err
	}

	m.logger.Debug("reply handled",
		zap.Int("task_id", task.ID),
		zap.String("kind", string(kind)))

	return Acknowledgement{
		Kind:    kind,
		Verdict: verdict,
		Task:    task,
		Message: acknowledge(kind, task),
	}, nil
}

func acknowledge(kind outcome.ReplyKind, t models.Task) string {
	switch kind {
	case outcome.ReplyDone:
		return fmt.Sprintf("✅ Task %q marked as completed.", t.Title)
	case outcome.ReplyFailed:
		return fmt.Sprintf("❌ Task %q marked as failed. Moving on.", t.Title)
	case outcome.ReplyNotDone:
		return fmt.Sprintf("📝 Task %q is still in progress. Tell me when it is finished.", t.Title)
	default:
		return `Sorry, I could not understand your reply. Please answer "done" or "not done".`
	}
}

func countStatus(tasks []models.Task, status models.TaskStatus) int {
	n := 0
	for _, t := range tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}
