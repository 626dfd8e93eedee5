package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/stepwise/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify stepwise configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/stepwise/config.yaml
Project-specific overrides can be placed in .stepwise.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()
		cfg := a.cfg

		switch len(args) {
		case 0:
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Printf("%s: %s\n", key, value)
			}
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Printf("Set %s = %s\n", args[0], args[1])
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file locations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("user:    %s\n", config.GetUserConfigPath())
		project := config.GetProjectConfigPath()
		if project == "" {
			project = "(none)"
		}
		fmt.Printf("project: %s\n", project)
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
}

// configKeys lists the keys shown by 'stepwise config', in display order.
var configKeys = []string{
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.max_tokens",
	"llm.timeout",
	"llm.ollama_host",
	"llm.bedrock.enabled",
	"llm.bedrock.region",
	"llm.bedrock.profile",
	"orchestrator.result_limit",
	"orchestrator.context_entries",
	"orchestrator.context_result_limit",
	"orchestrator.max_turns",
	"orchestrator.decompose_attempts",
	"orchestrator.on_redecompose",
	"classifier.keywords_file",
	"state.enabled",
	"state.path",
	"logging.level",
	"logging.format",
	"logging.file",
	"signals.dir",
	"metrics.addr",
	"tools",
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "llm.provider":
		return cfg.LLM.Provider, nil
	case "llm.model":
		return cfg.LLM.Model, nil
	case "llm.api_key":
		return config.MaskAPIKey(cfg.LLM.APIKey), nil
	case "llm.max_tokens":
		return strconv.FormatInt(cfg.LLM.MaxTokens, 10), nil
	case "llm.timeout":
		return cfg.LLM.Timeout.String(), nil
	case "llm.ollama_host":
		return cfg.LLM.OllamaHost, nil
	case "llm.bedrock.enabled":
		return strconv.FormatBool(cfg.LLM.Bedrock.Enabled), nil
	case "llm.bedrock.region":
		return cfg.LLM.Bedrock.Region, nil
	case "llm.bedrock.profile":
		return cfg.LLM.Bedrock.Profile, nil
	case "orchestrator.result_limit":
		return strconv.Itoa(cfg.Orchestrator.ResultLimit), nil
	case "orchestrator.context_entries":
		return strconv.Itoa(cfg.Orchestrator.ContextEntries), nil
	case "orchestrator.context_result_limit":
		return strconv.Itoa(cfg.Orchestrator.ContextResultLimit), nil
	case "orchestrator.max_turns":
		return strconv.Itoa(cfg.Orchestrator.MaxTurns), nil
	case "orchestrator.decompose_attempts":
		return strconv.Itoa(cfg.Orchestrator.DecomposeAttempts), nil
	case "orchestrator.on_redecompose":
		return cfg.Orchestrator.OnRedecompose, nil
	case "classifier.keywords_file":
		return cfg.Classifier.KeywordsFile, nil
	case "state.enabled":
		return strconv.FormatBool(cfg.State.Enabled), nil
	case "state.path":
		return cfg.State.Path, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "logging.file":
		return cfg.Logging.File, nil
	case "signals.dir":
		return cfg.Signals.Dir, nil
	case "metrics.addr":
		return cfg.Metrics.Addr, nil
	case "tools":
		return strings.Join(cfg.Tools, ","), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "llm.provider":
		cfg.LLM.Provider = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.api_key":
		cfg.LLM.APIKey = value
	case "llm.max_tokens":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for llm.max_tokens: %w", err)
		}
		cfg.LLM.MaxTokens = n
	case "llm.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for llm.timeout: %w", err)
		}
		cfg.LLM.Timeout = d
	case "llm.ollama_host":
		cfg.LLM.OllamaHost = value
	case "llm.bedrock.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for llm.bedrock.enabled: %w", err)
		}
		cfg.LLM.Bedrock.Enabled = b
	case "llm.bedrock.region":
		cfg.LLM.Bedrock.Region = value
	case "llm.bedrock.profile":
		cfg.LLM.Bedrock.Profile = value
	case "orchestrator.result_limit":
		return setInt(&cfg.Orchestrator.ResultLimit, key, value)
	case "orchestrator.context_entries":
		return setInt(&cfg.Orchestrator.ContextEntries, key, value)
	case "orchestrator.context_result_limit":
		return setInt(&cfg.Orchestrator.ContextResultLimit, key, value)
	case "orchestrator.max_turns":
		return setInt(&cfg.Orchestrator.MaxTurns, key, value)
	case "orchestrator.decompose_attempts":
		return setInt(&cfg.Orchestrator.DecomposeAttempts, key, value)
	case "orchestrator.on_redecompose":
		cfg.Orchestrator.OnRedecompose = value
	case "classifier.keywords_file":
		cfg.Classifier.KeywordsFile = value
	case "state.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for state.enabled: %w", err)
		}
		cfg.State.Enabled = b
	case "state.path":
		cfg.State.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "logging.file":
		cfg.Logging.File = value
	case "signals.dir":
		cfg.Signals.Dir = value
	case "metrics.addr":
		cfg.Metrics.Addr = value
	case "tools":
		var tools []string
		for _, t := range strings.Split(value, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tools = append(tools, t)
			}
		}
		cfg.Tools = tools
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dst = n
	return nil
}

