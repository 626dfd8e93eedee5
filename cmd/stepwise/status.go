package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/stepwise/internal/state"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

var statusPurge time.Duration

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("28"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show archived session state",
	Long: `Display archived sessions.

Without arguments, shows the most recent interrupted session (if any) and
recently finished sessions. With a session id, shows that session's task
list, current task and execution log size.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusPurge, "purge-older-than", 0, "Delete finished sessions older than this (e.g. 720h)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	path, err := a.archivePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No sessions yet. Run 'stepwise run <goal>' to start.")
		return nil
	}

	db, err := state.OpenMigrated(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if statusPurge > 0 {
		n, err := db.PurgeOldSessions(statusPurge)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d sessions older than %s\n\n", n, statusPurge)
	}

	if len(args) == 1 {
		return displaySessionDetail(db, args[0])
	}

	interrupted, err := state.NewRecoveryManager(db).CheckForInterrupted()
	if err != nil {
		return err
	}
	if interrupted == nil {
		fmt.Println("No interrupted session.")
	} else {
		displayInterrupted(interrupted)
	}

	fmt.Println()
	return displayRecentSessions(db)
}

func displayInterrupted(s *state.InterruptedSession) {
	fmt.Println(headingStyle.Render("Interrupted Session: " + s.SessionID))
	fmt.Printf("  %s %s\n", labelStyle.Render("Goal:"), s.Goal)
	fmt.Printf("  %s %s ago\n", labelStyle.Render("Started:"), formatDuration(time.Since(s.StartedAt)))
	fmt.Printf("  %s %s ago\n", labelStyle.Render("Last activity:"), formatDuration(time.Since(s.LastActivity)))
	fmt.Printf("  %s %d completed, %d failed, %d pending\n", labelStyle.Render("Tasks:"), s.Completed, s.Failed, s.Pending)
	if s.CurrentTaskID != nil {
		fmt.Printf("  %s %d\n", labelStyle.Render("Current task:"), *s.CurrentTaskID)
	}
	fmt.Printf("  Resume with: stepwise run --resume %s\n", s.SessionID)
}

func displaySessionDetail(db *state.DB, id string) error {
	sess, err := db.GetSession(id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("%w: %s", state.ErrSessionNotFound, id)
	}
	st, err := db.LoadState(id)
	if err != nil {
		return err
	}
	records, err := db.ListExecutionRecords(id)
	if err != nil {
		return err
	}

	fmt.Println(headingStyle.Render("Session: " + sess.ID))
	fmt.Printf("  %s %s\n", labelStyle.Render("Goal:"), sess.Goal)
	fmt.Printf("  %s %s (%s, %s)\n", labelStyle.Render("Status:"), sess.Status, sess.Mode, sess.Complexity)
	fmt.Printf("  %s %s ago\n", labelStyle.Render("Started:"), formatDuration(time.Since(sess.StartedAt)))
	fmt.Printf("  %s %d\n", labelStyle.Render("Execution records:"), len(records))
	fmt.Println()

	current, hasCurrent := st.Current()
	fmt.Println(renderTasks(st.Tasks(), current, hasCurrent))
	return nil
}

func renderTasks(tasks []models.Task, current int, hasCurrent bool) string {
	if len(tasks) == 0 {
		return pendingStyle.Render("  (no task list)")
	}
	var b strings.Builder
	for _, t := range tasks {
		var line string
		switch t.Status {
		case models.TaskStatusCompleted:
			line = doneStyle.Render(fmt.Sprintf("  ✅ %d. %s", t.ID, t.Title))
		case models.TaskStatusFailed:
			line = failedStyle.Render(fmt.Sprintf("  ❌ %d. %s", t.ID, t.Title))
		default:
			line = pendingStyle.Render(fmt.Sprintf("  ⏳ %d. %s", t.ID, t.Title))
		}
		if hasCurrent && t.ID == current {
			line = currentStyle.Render(fmt.Sprintf("  ▶  %d. %s", t.ID, t.Title))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func displayRecentSessions(db *state.DB) error {
	sessions, err := db.ListSessions(nil)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	// Filter to non-active sessions and limit to 5
	var recent []state.Session
	for _, s := range sessions {
		if s.Status != state.SessionActive {
			recent = append(recent, s)
			if len(recent) >= 5 {
				break
			}
		}
	}

	if len(recent) == 0 {
		return nil
	}

	fmt.Println(headingStyle.Render("Recent Sessions:"))
	for _, s := range recent {
		elapsed := formatDuration(time.Since(s.StartedAt))
		fmt.Printf("  %s: %s (%s ago) %s\n", s.ID, s.Status, elapsed, truncateGoal(s.Goal, 50))
	}

	return nil
}

func truncateGoal(goal string, n int) string {
	r := []rune(goal)
	if len(r) <= n {
		return goal
	}
	return string(r[:n-1]) + "…"
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
