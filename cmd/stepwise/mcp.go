package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/stepwise/internal/config"
	"github.com/ShayCichocki/stepwise/internal/mcpserver"
	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/internal/session"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the task loop as an MCP server on stdio",
	Long: `Run an MCP server on stdin/stdout so an external agent can drive the
loop itself: classify_request, submit_decomposition, next_step, report_result,
confirm_task and session_status.

Logs go to stderr (and logging.file) so they never mix with the protocol.
Sessions are archived when state.enabled is set and can be resumed by id
after a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		classifier, err := a.classifier()
		if err != nil {
			return err
		}
		orchCfg, err := a.orchestratorConfig()
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		cfg := &mcpserver.Config{
			Name:         "stepwise",
			Version:      Version(),
			Logger:       a.log.Logger,
			Orchestrator: orchCfg,
			Classifier:   classifier,
			Metrics:      orchestrator.NewMetrics(reg),
		}

		db, err := a.openArchive()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
			cfg.Archive = db
		}

		if addr := metricsAddr(a.cfg); addr != "" {
			srv := serveMetrics(addr, reg, a.log.Logger)
			defer shutdownMetrics(srv)
		}

		return mcpserver.NewServer(cfg, session.NewStore()).Run(ctx)
	},
}

func metricsAddr(cfg *config.Config) string {
	if runMetricsAddr != "" {
		return runMetricsAddr
	}
	return cfg.Metrics.Addr
}
