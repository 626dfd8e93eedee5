package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/internal/state"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// ===== CLASSIFY =====

type classifyInput struct {
	Text string `json:"text" jsonschema:"required,The user request to route"`
}

type classifyOutput struct {
	Complexity   string `json:"complexity" jsonschema:"simple or complex"`
	SimpleScore  int    `json:"simple_score" jsonschema:"Number of simple keywords matched"`
	ComplexScore int    `json:"complex_score" jsonschema:"Number of complex keywords matched"`
	Reason       string `json:"reason" jsonschema:"Why the request was routed this way"`
}

// ===== DECOMPOSITION =====

type submitDecompositionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Existing session to decompose into (empty creates a new session)"`
	Goal      string `json:"goal,omitempty" jsonschema:"The goal being decomposed, stored with a new session"`
	Response  string `json:"response" jsonschema:"required,Planner text containing the steps marker and numbered bold-titled steps"`
}

type submitDecompositionOutput struct {
	SessionID string        `json:"session_id" jsonschema:"Session holding the task list"`
	Count     int           `json:"count" jsonschema:"Number of tasks accepted (0 means the text had no steps)"`
	Tasks     []models.Task `json:"tasks" jsonschema:"The accepted task list"`
}

// ===== EXECUTION =====

type sessionInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session identifier"`
}

type nextStepOutput struct {
	Decision    string `json:"decision" jsonschema:"continue, escalate_done or escalate_empty"`
	TaskID      int    `json:"task_id,omitempty" jsonschema:"Task to execute when decision is continue"`
	Title       string `json:"title,omitempty" jsonschema:"Title of the task to execute"`
	Instruction string `json:"instruction" jsonschema:"Executor instruction, or the final summary on escalation"`
}

type reportResultInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session identifier"`
	Output    string `json:"output" jsonschema:"required,Executor output for the current task"`
}

type reportResultOutput struct {
	Verdict  string `json:"verdict" jsonschema:"completed, failed or indeterminate"`
	TaskID   int    `json:"task_id" jsonschema:"Task the output was applied to"`
	Status   string `json:"status" jsonschema:"Task status after the report"`
	Decision string `json:"decision" jsonschema:"Loop decision after the report"`
}

// ===== CONFIRMATION =====

type confirmTaskInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session identifier"`
	Reply     string `json:"reply,omitempty" jsonschema:"Human reply about the current task (empty asks the next question)"`
}

type confirmTaskOutput struct {
	Message   string `json:"message" jsonschema:"Text to show the human"`
	Decision  string `json:"decision" jsonschema:"Loop decision after this call"`
	Reply     string `json:"reply_kind,omitempty" jsonschema:"How the reply was understood: done, not_done, failed or unclear"`
	TaskID    int    `json:"task_id,omitempty" jsonschema:"Task now being asked about"`
	Completed int    `json:"completed" jsonschema:"Completed task count"`
	Total     int    `json:"total" jsonschema:"Total task count"`
}

// ===== STATUS =====

type sessionStatusOutput struct {
	SessionID             string        `json:"session_id"`
	Decision              string        `json:"decision"`
	DecompositionComplete bool          `json:"task_decomposition_complete"`
	CurrentTaskID         *int          `json:"current_executing_task_id,omitempty"`
	Records               int           `json:"records" jsonschema:"Number of applied execution records"`
	Tasks                 []models.Task `json:"tasks"`
	Summary               string        `json:"summary"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "classify_request",
		Description: "Classify a request as simple (answer directly) or complex (decompose into sequential steps).",
	}, s.handleClassify)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "submit_decomposition",
		Description: "Parse planner text into a task list. The text must contain the steps marker followed by lines like '1. **Title**: description'.",
	}, s.handleSubmitDecomposition)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "next_step",
		Description: "Advance the session by one turn. Returns the instruction for the next task, or the final summary when no task is pending.",
	}, s.handleNextStep)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "report_result",
		Description: "Report executor output for the current task. Output with a completion or failure marker settles the task; anything else leaves it pending.",
	}, s.handleReportResult)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "confirm_task",
		Description: "Human confirmation flow. Without a reply, asks about the next pending task. With a reply ('done', 'not done', 'failed'), applies it to the current task.",
	}, s.handleConfirmTask)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_status",
		Description: "Show the task list, current task and loop decision of a session.",
	}, s.handleSessionStatus)
}

func (s *Server) handleClassify(ctx context.Context, req *mcp.CallToolRequest, args classifyInput) (*mcp.CallToolResult, classifyOutput, error) {
	if strings.TrimSpace(args.Text) == "" {
		return nil, classifyOutput{}, fmt.Errorf("text is required")
	}
	c := s.classifier.Explain(args.Text)
	out := classifyOutput{
		Complexity:   string(c.Complexity),
		SimpleScore:  c.SimpleScore,
		ComplexScore: c.ComplexScore,
		Reason:       c.Reason,
	}
	return textResult(fmt.Sprintf("%s: %s", out.Complexity, out.Reason)), out, nil
}

func (s *Server) handleSubmitDecomposition(ctx context.Context, req *mcp.CallToolRequest, args submitDecompositionInput) (*mcp.CallToolResult, submitDecompositionOutput, error) {
	var (
		id   = args.SessionID
		orch *orchestrator.Orchestrator
		err  error
	)
	if id == "" {
		id, orch, err = s.newSession(args.Goal)
	} else {
		orch, err = s.orchestrator(id)
	}
	if err != nil {
		return nil, submitDecompositionOutput{}, err
	}

	n, err := orch.AcceptResponse(args.Response)
	if err != nil {
		return nil, submitDecompositionOutput{}, err
	}

	out := submitDecompositionOutput{
		SessionID: id,
		Count:     n,
		Tasks:     orch.State().Tasks(),
	}
	s.logger.Info("decomposition submitted", zap.String("session_id", id), zap.Int("tasks", n))

	if n == 0 {
		return textResult(fmt.Sprintf("No steps found in the response. Session %s is unchanged.", id)), out, nil
	}
	return textResult(fmt.Sprintf("Accepted %d tasks for session %s.", n, id)), out, nil
}

func (s *Server) handleNextStep(ctx context.Context, req *mcp.CallToolRequest, args sessionInput) (*mcp.CallToolResult, nextStepOutput, error) {
	orch, err := s.orchestrator(args.SessionID)
	if err != nil {
		return nil, nextStepOutput{}, err
	}

	turn, err := orch.Next()
	if err != nil {
		return nil, nextStepOutput{}, err
	}

	out := nextStepOutput{
		Decision:    string(turn.Decision),
		Instruction: turn.Instruction,
	}
	if turn.Task != nil {
		out.TaskID = turn.Task.ID
		out.Title = turn.Task.Title
	}
	if turn.Decision.Terminal() {
		s.finish(args.SessionID, turn.Decision, orch.State().Tasks())
	}
	return textResult(turn.Instruction), out, nil
}

func (s *Server) handleReportResult(ctx context.Context, req *mcp.CallToolRequest, args reportResultInput) (*mcp.CallToolResult, reportResultOutput, error) {
	orch, err := s.orchestrator(args.SessionID)
	if err != nil {
		return nil, reportResultOutput{}, err
	}

	id, ok := orch.State().Current()
	if !ok {
		return nil, reportResultOutput{}, orchestrator.ErrNoCurrentTask
	}

	verdict, err := orch.Report(args.Output)
	if err != nil {
		return nil, reportResultOutput{}, err
	}

	task, _ := orch.State().Task(id)
	out := reportResultOutput{
		Verdict:  string(verdict),
		TaskID:   id,
		Status:   string(task.Status),
		Decision: string(orch.LoopDecision()),
	}

	msg := fmt.Sprintf("Task %d (%s): %s.", id, task.Title, verdict)
	if verdict == models.VerdictIndeterminate {
		msg += " No completion or failure marker found; the task stays pending."
	}
	return textResult(msg), out, nil
}

func (s *Server) handleConfirmTask(ctx context.Context, req *mcp.CallToolRequest, args confirmTaskInput) (*mcp.CallToolResult, confirmTaskOutput, error) {
	orch, err := s.orchestrator(args.SessionID)
	if err != nil {
		return nil, confirmTaskOutput{}, err
	}
	mon := orchestrator.NewMonitor(orch)

	var out confirmTaskOutput
	var parts []string

	if strings.TrimSpace(args.Reply) != "" {
		ack, err := mon.HandleReply(args.Reply)
		if err != nil {
			return nil, confirmTaskOutput{}, err
		}
		out.Reply = string(ack.Kind)
		parts = append(parts, ack.Message)
	}

	inq, err := mon.NextInquiry()
	if err != nil {
		return nil, confirmTaskOutput{}, err
	}
	parts = append(parts, inq.Message)

	out.Decision = string(inq.Decision)
	out.Completed = inq.Completed
	out.Total = inq.Total
	if inq.Task != nil {
		out.TaskID = inq.Task.ID
	}
	out.Message = strings.Join(parts, "\n\n")

	if inq.Done() {
		s.finish(args.SessionID, inq.Decision, orch.State().Tasks())
	}
	return textResult(out.Message), out, nil
}

func (s *Server) handleSessionStatus(ctx context.Context, req *mcp.CallToolRequest, args sessionInput) (*mcp.CallToolResult, sessionStatusOutput, error) {
	orch, err := s.orchestrator(args.SessionID)
	if err != nil {
		return nil, sessionStatusOutput{}, err
	}

	st := orch.State()
	out := sessionStatusOutput{
		SessionID:             args.SessionID,
		Decision:              string(orch.LoopDecision()),
		DecompositionComplete: st.DecompositionComplete(),
		Records:               len(st.Records()),
		Tasks:                 st.Tasks(),
		Summary:               orch.Summary(),
	}
	if id, ok := st.Current(); ok {
		out.CurrentTaskID = &id
	}
	return textResult(out.Summary), out, nil
}

// finish marks an archived session as ended.
func (s *Server) finish(id string, d orchestrator.Decision, tasks []models.Task) {
	if s.cfg.Archive == nil || d != orchestrator.DecisionEscalateDone {
		return
	}
	if err := s.cfg.Archive.UpdateSessionStatus(id, state.FinalStatus(tasks)); err != nil {
		s.logger.Warn("failed to update session status", zap.String("session_id", id), zap.Error(err))
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
