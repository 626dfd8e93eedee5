package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/stepwise/internal/config"
	"github.com/ShayCichocki/stepwise/internal/state"
)

var (
	initForce    bool
	initNoIgnore bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a stepwise project",
	Long: `Initialize a directory for use with stepwise.

This command:
  - Checks that a model provider is reachable (API key or Ollama host)
  - Creates the .stepwise directory (signals, logs, session archive)
  - Writes a .stepwise.yaml template
  - Adds stepwise entries to .gitignore

The directory argument is optional and defaults to the current directory.

Examples:
  stepwise init              # Initialize current directory
  stepwise init ./myproject  # Initialize specific directory
  stepwise init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initNoIgnore, "no-gitignore", false, "Do not touch .gitignore")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing stepwise in %s...\n\n", absPath)

	stepwiseDir := filepath.Join(absPath, ".stepwise")
	if _, err := os.Stat(stepwiseDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	// Provider prerequisites
	cfg := config.Default()
	apiKey, keyErr := config.GetAPIKey(cfg)
	switch {
	case keyErr == nil:
		printStatus("✓", "Anthropic API key found ("+config.MaskAPIKey(apiKey)+")", color.FgGreen)
	case os.Getenv("OLLAMA_HOST") != "":
		printStatus("✓", "OLLAMA_HOST is set (use llm.provider: ollama)", color.FgGreen)
	default:
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	}

	// Directory structure
	for _, dir := range []string{
		stepwiseDir,
		filepath.Join(absPath, cfg.Signals.Dir),
		filepath.Join(stepwiseDir, "logs"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .stepwise directory structure", color.FgGreen)

	db, err := state.OpenMigrated(state.ProjectDBPath(absPath))
	if err != nil {
		printStatus("✗", "Could not create session archive", color.FgRed)
		return err
	}
	db.Close()
	printStatus("✓", "Created session archive", color.FgGreen)

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .stepwise.yaml template", color.FgGreen)

	if !initNoIgnore {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with stepwise entries", color.FgGreen)
	}

	fmt.Printf("\n%s stepwise initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if keyErr != nil {
		fmt.Println("  1. Set your API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Run a goal:")
	fmt.Println("     stepwise run \"your goal here\"")
	fmt.Println("     # or: stepwise confirm \"your goal here\" (you confirm each step)")
	fmt.Println()
	fmt.Println("  3. Learn more:")
	fmt.Println("     stepwise --help")

	return nil
}

// gitignoreEntries are the paths stepwise writes at runtime.
var gitignoreEntries = []string{
	".stepwise/state.db*",
	".stepwise/logs/",
	".stepwise/signals/",
}

// updateGitignore adds stepwise entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# stepwise\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// projectConfigTemplate documents the project-level overrides.
const projectConfigTemplate = `# stepwise project configuration
# This file overrides defaults from ~/.config/stepwise/config.yaml

# llm:
#   provider: anthropic        # or ollama
#   model: claude-sonnet-4-20250514
#   max_tokens: 4096
#   timeout: 2m
#   bedrock:
#     enabled: false
#     region: us-west-2

# orchestrator:
#   result_limit: 500          # characters kept in each task's result
#   context_entries: 5         # prior results shown to the executor
#   context_result_limit: 300
#   max_turns: 50
#   decompose_attempts: 2
#   on_redecompose: replace    # or reject

# classifier:
#   keywords_file: keywords.yaml

# tools: [braveSearch, fetch, fileSystem, time, office_word, office_excel]

# logging:
#   level: info
#   format: console
#   file: stepwise.log         # relative names go under .stepwise/logs/

# metrics:
#   addr: ":9464"
`

// createProjectConfig creates .stepwise.yaml template
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".stepwise.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}
	return os.WriteFile(configPath, []byte(projectConfigTemplate), 0644)
}
