package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// maxLogLines bounds the acknowledgement history kept on screen.
const maxLogLines = 8

// inquiryMsg carries the result of asking the monitor for the next question.
type inquiryMsg struct {
	inquiry orchestrator.Inquiry
	err     error
}

// ackMsg carries the result of applying a reply.
type ackMsg struct {
	ack orchestrator.Acknowledgement
	err error
}

// ConfirmModel is the bubbletea model for human task confirmation.
type ConfirmModel struct {
	monitor *orchestrator.Monitor
	tasks   func() []models.Task

	input *InputField
	view  *TasksView

	inquiry orchestrator.Inquiry
	log     []string
	err     error
	done    bool
	width   int

	questionStyle lipgloss.Style
	logStyle      lipgloss.Style
	errorStyle    lipgloss.Style
	reportStyle   lipgloss.Style
	helpStyle     lipgloss.Style
}

// NewConfirmModel creates a confirmation model over orch.
func NewConfirmModel(orch *orchestrator.Orchestrator) *ConfirmModel {
	return &ConfirmModel{
		monitor: orchestrator.NewMonitor(orch),
		tasks:   orch.State().Tasks,
		input:   NewInputField(),
		view:    NewTasksView(),
		width:   80,

		questionStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),
		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		reportStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Padding(0, 1),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init asks the first question.
func (m *ConfirmModel) Init() tea.Cmd {
	return tea.Batch(m.input.Focus(), m.ask)
}

func (m *ConfirmModel) ask() tea.Msg {
	inq, err := m.monitor.NextInquiry()
	return inquiryMsg{inquiry: inq, err: err}
}

func (m *ConfirmModel) reply(text string) tea.Cmd {
	return func() tea.Msg {
		ack, err := m.monitor.HandleReply(text)
		return ackMsg{ack: ack, err: err}
	}
}

// Update handles messages.
func (m *ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.SetWidth(msg.Width)
		m.view.SetWidth(msg.Width)
		return m, nil

	case inquiryMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.inquiry = msg.inquiry
		if msg.inquiry.Done() {
			m.done = true
			m.input.Blur()
			return m, tea.Quit
		}
		return m, nil

	case ReplySubmittedMsg:
		if m.done {
			return m, nil
		}
		return m, m.reply(msg.Reply)

	case ackMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.appendLog(msg.ack.Message)
		return m, m.ask
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ConfirmModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// View renders the model.
func (m *ConfirmModel) View() string {
	var b strings.Builder

	current := 0
	if m.inquiry.Task != nil {
		current = m.inquiry.Task.ID
	}
	b.WriteString(m.view.Render(m.tasks(), current))
	b.WriteString("\n")

	for _, line := range m.log {
		b.WriteString(m.logStyle.Render(line))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(m.errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	case m.done:
		b.WriteString(m.reportStyle.Render(m.inquiry.Message))
		b.WriteString("\n")
	default:
		if m.inquiry.Message != "" {
			b.WriteString(m.questionStyle.Render(m.inquiry.Message))
			b.WriteString("\n")
		}
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(m.helpStyle.Render("enter: reply • esc/ctrl+c: leave (progress is kept)"))
	}
	return b.String()
}

// Done reports whether every task has a verdict.
func (m *ConfirmModel) Done() bool {
	return m.done
}

// Err returns the error that ended the model, if any.
func (m *ConfirmModel) Err() error {
	return m.err
}

// Report returns the final completion report once Done.
func (m *ConfirmModel) Report() string {
	if !m.done {
		return ""
	}
	return m.inquiry.Message
}
