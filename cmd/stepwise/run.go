package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/decompose"
	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/internal/signals"
	"github.com/ShayCichocki/stepwise/internal/state"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

var (
	runResume       string
	runForceComplex bool
	runMaxTurns     int
	runMetricsAddr  string
	runPlanFile     string
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan and execute a goal",
	Long: `Route a goal, and for complex goals decompose it into sequential steps
and execute them one at a time until every step is completed or failed.

Each step's output is classified by its completion or failure marker.
Output with neither marker leaves the step pending and it is dispatched again.

Create .stepwise/signals/stop to stop between steps, or .stepwise/signals/pause
to hold dispatch until the file is removed (see 'stepwise signal').

Examples:
  stepwise run "design and deploy a status page"
  stepwise run --force-complex "what is a goroutine"
  stepwise run --plan-file plan.md "write the quarterly report"
  stepwise run --resume 6f1c...   # continue an interrupted session`,
	Args: func(cmd *cobra.Command, args []string) error {
		if runResume == "" && len(args) == 0 {
			return errors.New("a goal is required unless --resume is set")
		}
		return nil
	},
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume an archived session by id")
	runCmd.Flags().BoolVar(&runForceComplex, "force-complex", false, "Decompose even when the goal looks simple")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "Override orchestrator.max_turns")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	runCmd.Flags().StringVar(&runPlanFile, "plan-file", "", "Read the decomposition from a file instead of asking the model")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.log.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := a.openArchive()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	reg := prometheus.NewRegistry()
	metrics := orchestrator.NewMetrics(reg)
	if addr := metricsAddr(a.cfg); addr != "" {
		srv := serveMetrics(addr, reg, logger)
		defer shutdownMetrics(srv)
	}

	classifier, err := a.classifier()
	if err != nil {
		return err
	}
	responder, err := a.responder()
	if err != nil {
		return err
	}
	orchCfg, err := a.orchestratorConfig()
	if err != nil {
		return err
	}

	coord := orchestrator.NewCoordinator(
		classifier,
		decompose.New(responder,
			decompose.WithAttempts(a.cfg.Orchestrator.DecomposeAttempts),
			decompose.WithLogger(logger)),
		orchestrator.ResponderExecutor{Responder: responder},
		orchestrator.WithForceComplex(runForceComplex),
		orchestrator.WithCoordinatorLogger(logger),
	)

	// Resolve the session: resumed from the archive or new.
	var (
		sessionID string
		goal      = strings.Join(args, " ")
		st        *session.State
	)
	if runResume != "" {
		if db == nil {
			return errors.New("--resume needs the session archive (state.enabled)")
		}
		sess, restored, err := state.NewRecoveryManager(db).Resume(runResume)
		if err != nil {
			return err
		}
		sessionID, goal, st = sess.ID, sess.Goal, restored
		fmt.Printf("Resuming session %s: %s\n", sessionID, goal)
	} else {
		sessionID = uuid.New().String()
		st = session.New()
		if db != nil {
			err := db.CreateSession(&state.Session{
				ID:         sessionID,
				Goal:       goal,
				Complexity: coord.Classify(goal).Complexity,
				Mode:       state.ModeRun,
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
		orchestrator.WithMetrics(metrics),
	}
	if db != nil {
		opts = append(opts, orchestrator.WithRecorder(db))
	}
	orch := orchestrator.New(st, opts...)

	pause := orchestrator.NewPauseController(logger)
	if err := signals.ClearSignals(a.cfg.Signals.Dir); err != nil {
		logger.Warn("could not clear stale signals", zap.Error(err))
	}
	watcher, err := signals.NewWatcher(a.cfg.Signals.Dir, pause, logger.Named("signals"))
	if err != nil {
		return err
	}
	watcher.Start(ctx)
	defer watcher.Close()

	maxTurns := a.cfg.Orchestrator.MaxTurns
	if runMaxTurns > 0 {
		maxTurns = runMaxTurns
	}
	runnerOpts := []orchestrator.RunnerOption{
		orchestrator.WithMaxTurns(maxTurns),
		orchestrator.WithPauseController(pause),
		orchestrator.WithObserver(printStep),
	}

	var (
		result *orchestrator.RunResult
		runErr error
	)
	switch {
	case runResume != "":
		res, err := orchestrator.NewRunner(orch, coord.Executor(), append(runnerOpts, orchestrator.WithRunnerLogger(logger))...).Run(ctx)
		result, runErr = &res, err

	case runPlanFile != "":
		data, err := os.ReadFile(runPlanFile)
		if err != nil {
			return fmt.Errorf("read plan file: %w", err)
		}
		n, err := orch.AcceptResponse(string(data))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w in %s", decompose.ErrNoSteps, runPlanFile)
		}
		printPlan(orch.State().Tasks())
		res, err := orchestrator.NewRunner(orch, coord.Executor(), append(runnerOpts, orchestrator.WithRunnerLogger(logger))...).Run(ctx)
		result, runErr = &res, err

	default:
		out, err := coord.Handle(ctx, goal, orch, runnerOpts...)
		if out.Answer != "" {
			fmt.Println(out.Answer)
			finishSession(db, sessionID, state.SessionCompleted, logger)
			return nil
		}
		if out.Decomposition != nil && len(out.Decomposition.Tasks) > 0 {
			printPlan(out.Decomposition.Tasks)
		}
		result, runErr = out.Run, err
	}

	if result != nil {
		fmt.Println()
		fmt.Println(result.Summary)
	}

	switch {
	case runErr == nil && result != nil && result.Decision.Terminal():
		finishSession(db, sessionID, state.FinalStatus(result.Tasks), logger)
		return nil
	case runErr == nil:
		return nil
	case isResumable(runErr):
		if db != nil {
			fmt.Printf("\nRun interrupted (%v). Resume with: stepwise run --resume %s\n", runErr, sessionID)
			return nil
		}
		return runErr
	default:
		finishSession(db, sessionID, state.SessionFailed, logger)
		return runErr
	}
}

// isResumable reports whether a run ended in a way that leaves the session worth resuming.
func isResumable(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, orchestrator.ErrStopped) ||
		errors.Is(err, orchestrator.ErrMaxTurns)
}

func finishSession(db *state.DB, id string, status state.SessionStatus, logger *zap.Logger) {
	if db == nil {
		return
	}
	if err := db.UpdateSessionStatus(id, status); err != nil {
		logger.Warn("failed to update session status", zap.String("session_id", id), zap.Error(err))
	}
}

func printPlan(tasks []models.Task) {
	fmt.Printf("Plan (%d steps):\n", len(tasks))
	for _, t := range tasks {
		fmt.Printf("  %d. %s: %s\n", t.ID, t.Title, t.Description)
	}
	fmt.Println()
}

// printStep prints one turn of a run.
func printStep(s orchestrator.Step) {
	switch {
	case s.Err != nil:
		printStatus("!", fmt.Sprintf("[%d] %s: executor error, retrying (%v)", s.Turn, s.Task.Title, s.Err), color.FgYellow)
	case s.Verdict == models.VerdictCompleted:
		printStatus("✓", fmt.Sprintf("[%d] %s", s.Turn, s.Task.Title), color.FgGreen)
	case s.Verdict == models.VerdictFailed:
		printStatus("✗", fmt.Sprintf("[%d] %s", s.Turn, s.Task.Title), color.FgRed)
	default:
		printStatus("…", fmt.Sprintf("[%d] %s: no verdict yet, will retry", s.Turn, s.Task.Title), color.FgYellow)
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
