package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// TasksView renders a task list with status indicators.
type TasksView struct {
	width int

	titleStyle    lipgloss.Style
	borderStyle   lipgloss.Style
	currentStyle  lipgloss.Style
	pendingStyle  lipgloss.Style
	doneStyle     lipgloss.Style
	failedStyle   lipgloss.Style
	progressStyle lipgloss.Style
}

// NewTasksView creates a TasksView.
func NewTasksView() *TasksView {
	return &TasksView{
		width: 80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),

		currentStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		progressStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),
	}
}

// SetWidth sets the rendered width.
func (v *TasksView) SetWidth(width int) {
	v.width = width
}

// Render draws tasks, highlighting currentID when it is non-zero.
func (v *TasksView) Render(tasks []models.Task, currentID int) string {
	var b strings.Builder
	b.WriteString(v.titleStyle.Render("Tasks"))
	b.WriteString("\n")

	if len(tasks) == 0 {
		b.WriteString(v.pendingStyle.Render("  (no tasks)"))
		return v.borderStyle.Width(v.width - 2).Render(b.String())
	}

	done := 0
	for _, t := range tasks {
		line := fmt.Sprintf("%s %d. %s", statusIcon(t.Status), t.ID, t.Title)
		switch {
		case t.ID == currentID:
			line = v.currentStyle.Render(line + "  ◀")
		case t.Status == models.TaskStatusCompleted:
			line = v.doneStyle.Render(line)
		case t.Status == models.TaskStatusFailed:
			line = v.failedStyle.Render(line)
		default:
			line = v.pendingStyle.Render(line)
		}
		if t.Status.Terminal() {
			done++
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(v.progressStyle.Render(fmt.Sprintf("  %d/%d settled", done, len(tasks))))

	return v.borderStyle.Width(v.width - 2).Render(b.String())
}

func statusIcon(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return "✅"
	case models.TaskStatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}
