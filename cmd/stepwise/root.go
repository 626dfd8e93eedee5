package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "stepwise",
	Short: "Task decomposition and sequential execution",
	Long: `Stepwise routes a request to a direct answer or to a plan of sequential
steps, then drives the plan one task at a time.

Simple requests ("what is ...") are answered in one model call. Complex
requests are decomposed into numbered steps, and each step is executed,
classified from its output, and recorded before the next one starts.

Core capabilities:
- Keyword-based complexity routing
- Decomposition into an ordered task list
- Auto-execution with completion/failure markers
- Human confirmation mode ("done", "not done", "failed")
- Session archive with resume
- MCP server for external agents`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with .stepwise.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override logging.format (console, json)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
