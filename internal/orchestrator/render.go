package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// RenderInstruction builds the executor instruction for ec.
func RenderInstruction(ec ExecutionContext, tools []string) string {
	var b strings.Builder
	t := ec.Task

	b.WriteString("Execute the following task.\n\n")
	fmt.Fprintf(&b, "**Task title**: %s\n", t.Title)
	fmt.Fprintf(&b, "**Task description**: %s\n", t.Description)
	fmt.Fprintf(&b, "**Task ID**: %d\n\n", t.ID)

	if len(ec.Prior) > 0 {
		b.WriteString("Results of earlier tasks:\n")
		for _, p := range ec.Prior {
			fmt.Fprintf(&b, "- [%d] %s (%s): %s\n", p.TaskID, p.Title, p.Status, p.Result)
		}
		b.WriteString("\n")
	}

	b.WriteString("Work in a Think-Act-Observe cycle:\n")
	b.WriteString("1. **Think**: analyse what the task needs and plan the approach\n")
	b.WriteString("2. **Act**: use the appropriate tools to carry it out\n")
	b.WriteString("3. **Observe**: check the result and decide the next step\n\n")

	if len(tools) > 0 {
		b.WriteString("Available tools:\n")
		for _, name := range tools {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	b.WriteString("When the task is finished, end your answer with \"✅ Task complete\".\n")
	b.WriteString("If it cannot be finished, explain why and end with \"❌ Cannot complete\".\n")
	return b.String()
}

// RenderSummary builds the final report for an escalated loop.
func RenderSummary(decision Decision, tasks []models.Task) string {
	if decision == DecisionEscalateEmpty || len(tasks) == 0 {
		return "No tasks to execute."
	}

	var completed, failed, pending int
	var b strings.Builder
	for _, t := range tasks {
		mark := "⏳"
		switch t.Status {
		case models.TaskStatusCompleted:
			completed++
			mark = "✅"
		case models.TaskStatusFailed:
			failed++
			mark = "❌"
		default:
			pending++
		}
		fmt.Fprintf(&b, "%d. %s %s\n", t.ID, mark, t.Title)
	}

	var head string
	switch {
	case pending > 0:
		head = "Execution stopped before every task finished:"
	case failed == 0:
		head = "🎉 All tasks completed:"
	default:
		head = "Execution finished with failures:"
	}

	return fmt.Sprintf("%s\n%s%d completed, %d failed, %d pending, %d total.",
		head, b.String(), completed, failed, pending, len(tasks))
}

// RenderInquiry builds the confirmation question for t.
func RenderInquiry(t models.Task, completed, total int) string {
	return fmt.Sprintf(`Is the task "%s" done?
Description: %s
Task ID: %d

Reply "done" if it is finished, "not done" if it is still in progress, or "skip" to mark it failed.

Progress: completed %d/%d tasks`, t.Title, t.Description, t.ID, completed, total)
}

// RenderCompletionReport lists the completed tasks once nothing is pending.
func RenderCompletionReport(tasks []models.Task) string {
	var b strings.Builder
	b.WriteString("🎉 All tasks are finished:\n")
	n := 0
	for _, t := range tasks {
		if t.Status != models.TaskStatusCompleted {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. ✅ %s\n", n, t.Title)
	}
	for _, t := range tasks {
		if t.Status == models.TaskStatusFailed {
			fmt.Fprintf(&b, "   ❌ %s\n", t.Title)
		}
	}
	b.WriteString("Execution complete!")
	return b.String()
}
