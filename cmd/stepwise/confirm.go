package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/stepwise/internal/decompose"
	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/internal/state"
	"github.com/ShayCichocki/stepwise/internal/tui"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

var (
	confirmResume   string
	confirmPlanFile string
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <goal>",
	Short: "Walk through a plan, confirming each step yourself",
	Long: `Decompose a goal into steps and ask, one step at a time, whether you
have finished it. Reply "done", "not done" or "failed" (Chinese replies such
as 完成, 未完成 and 跳过 work too).

Leaving with Esc or Ctrl+C keeps the session; continue it with --resume.

Examples:
  stepwise confirm "migrate the wiki to the new host"
  stepwise confirm --plan-file plan.md "onboard the new hire"
  stepwise confirm --resume 6f1c...`,
	Args: func(cmd *cobra.Command, args []string) error {
		if confirmResume == "" && len(args) == 0 {
			return errors.New("a goal is required unless --resume is set")
		}
		return nil
	},
	RunE: runConfirm,
}

func init() {
	confirmCmd.Flags().StringVar(&confirmResume, "resume", "", "Resume an archived session by id")
	confirmCmd.Flags().StringVar(&confirmPlanFile, "plan-file", "", "Read the decomposition from a file instead of asking the model")
}

func runConfirm(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.log.Logger

	db, err := a.openArchive()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	orchCfg, err := a.orchestratorConfig()
	if err != nil {
		return err
	}

	var (
		sessionID string
		goal      = strings.Join(args, " ")
		st        *session.State
		tasks     []models.Task
	)

	switch {
	case confirmResume != "":
		if db == nil {
			return errors.New("--resume needs the session archive (state.enabled)")
		}
		sess, restored, err := state.NewRecoveryManager(db).Resume(confirmResume)
		if err != nil {
			return err
		}
		sessionID, goal, st = sess.ID, sess.Goal, restored

	case confirmPlanFile != "":
		data, err := os.ReadFile(confirmPlanFile)
		if err != nil {
			return fmt.Errorf("read plan file: %w", err)
		}
		tasks = decompose.ExtractTasks(string(data))
		if len(tasks) == 0 {
			return fmt.Errorf("%w in %s", decompose.ErrNoSteps, confirmPlanFile)
		}

	default:
		responder, err := a.responder()
		if err != nil {
			return err
		}
		d := decompose.New(responder,
			decompose.WithAttempts(a.cfg.Orchestrator.DecomposeAttempts),
			decompose.WithLogger(logger))
		fmt.Println("Planning...")
		res, err := d.Decompose(cmd.Context(), goal)
		if err != nil {
			return err
		}
		tasks = res.Tasks
	}

	if st == nil {
		sessionID = uuid.New().String()
		st = session.New()
		if db != nil {
			err := db.CreateSession(&state.Session{
				ID:         sessionID,
				Goal:       goal,
				Complexity: models.ComplexityComplex,
				Mode:       state.ModeConfirm,
			})
			if err != nil {
				return err
			}
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithConfig(orchCfg),
		orchestrator.WithSessionID(sessionID),
		orchestrator.WithLogger(logger),
	}
	if db != nil {
		opts = append(opts, orchestrator.WithRecorder(db))
	}
	orch := orchestrator.New(st, opts...)
	if tasks != nil {
		if err := orch.AcceptDecomposition(tasks); err != nil {
			return err
		}
	}

	model := tui.NewConfirmModel(orch)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("confirmation ui: %w", err)
	}
	if err := model.Err(); err != nil {
		finishSession(db, sessionID, state.SessionFailed, logger)
		return err
	}

	if model.Done() {
		fmt.Println(model.Report())
		finishSession(db, sessionID, state.FinalStatus(orch.State().Tasks()), logger)
		return nil
	}
	if db != nil {
		fmt.Printf("Progress saved. Continue with: stepwise confirm --resume %s\n", sessionID)
	}
	return nil
}
