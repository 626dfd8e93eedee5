// Package config handles configuration loading and management for stepwise.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for stepwise.
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	State        StateConfig        `mapstructure:"state"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Signals      SignalsConfig      `mapstructure:"signals"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	// Tools are the capability names advertised to the executor.
	Tools []string `mapstructure:"tools"`
}

// LLMConfig selects the language-model responder.
type LLMConfig struct {
	// Provider is "anthropic" or "ollama".
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	MaxTokens  int64         `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
	OllamaHost string        `mapstructure:"ollama_host"`
	Bedrock    BedrockConfig `mapstructure:"bedrock"`
}

// BedrockConfig routes Anthropic calls through AWS Bedrock.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// OrchestratorConfig holds the task loop tunables.
type OrchestratorConfig struct {
	ResultLimit        int    `mapstructure:"result_limit"`
	ContextEntries     int    `mapstructure:"context_entries"`
	ContextResultLimit int    `mapstructure:"context_result_limit"`
	MaxTurns           int    `mapstructure:"max_turns"`
	DecomposeAttempts  int    `mapstructure:"decompose_attempts"`
	OnRedecompose      string `mapstructure:"on_redecompose"`
}

// ClassifierConfig points at an optional keyword override file.
type ClassifierConfig struct {
	KeywordsFile string `mapstructure:"keywords_file"`
}

// StateConfig controls the SQLite session archive.
type StateConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the database file; empty uses the project database.
	Path string `mapstructure:"path"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File, when set, receives logs in addition to stderr.
	File string `mapstructure:"file"`
}

// SignalsConfig controls the stop/pause signal directory.
type SignalsConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// DefaultTools are advertised to the executor when none are configured.
var DefaultTools = []string{"braveSearch", "fetch", "fileSystem", "time", "office_word", "office_excel"}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OLLAMA_HOST, STEPWISE_*)
// 2. Project config (.stepwise.yaml in current directory or parent)
// 3. User config (~/.config/stepwise/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.model", cfg.LLM.Model)
	if !keyFromEnv(cfg.LLM.APIKey) {
		v.Set("llm.api_key", cfg.LLM.APIKey)
	}
	v.Set("llm.max_tokens", cfg.LLM.MaxTokens)
	v.Set("llm.timeout", cfg.LLM.Timeout.String())
	v.Set("llm.ollama_host", cfg.LLM.OllamaHost)
	v.Set("llm.bedrock.enabled", cfg.LLM.Bedrock.Enabled)
	v.Set("llm.bedrock.region", cfg.LLM.Bedrock.Region)
	v.Set("llm.bedrock.profile", cfg.LLM.Bedrock.Profile)
	v.Set("orchestrator.result_limit", cfg.Orchestrator.ResultLimit)
	v.Set("orchestrator.context_entries", cfg.Orchestrator.ContextEntries)
	v.Set("orchestrator.context_result_limit", cfg.Orchestrator.ContextResultLimit)
	v.Set("orchestrator.max_turns", cfg.Orchestrator.MaxTurns)
	v.Set("orchestrator.decompose_attempts", cfg.Orchestrator.DecomposeAttempts)
	v.Set("orchestrator.on_redecompose", cfg.Orchestrator.OnRedecompose)
	v.Set("classifier.keywords_file", cfg.Classifier.KeywordsFile)
	v.Set("state.enabled", cfg.State.Enabled)
	v.Set("state.path", cfg.State.Path)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("signals.dir", cfg.Signals.Dir)
	v.Set("metrics.addr", cfg.Metrics.Addr)
	v.Set("tools", cfg.Tools)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "ollama":
	default:
		return fmt.Errorf("llm.provider must be anthropic or ollama, got %q", c.LLM.Provider)
	}
	switch c.Orchestrator.OnRedecompose {
	case "replace", "reject":
	default:
		return fmt.Errorf("orchestrator.on_redecompose must be replace or reject, got %q", c.Orchestrator.OnRedecompose)
	}
	if c.Orchestrator.ResultLimit <= 0 {
		return fmt.Errorf("orchestrator.result_limit must be positive, got %d", c.Orchestrator.ResultLimit)
	}
	if c.Orchestrator.MaxTurns <= 0 {
		return fmt.Errorf("orchestrator.max_turns must be positive, got %d", c.Orchestrator.MaxTurns)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STEPWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("llm.api_key", "STEPWISE_LLM_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.ollama_host", "STEPWISE_LLM_OLLAMA_HOST", "OLLAMA_HOST")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.LLM.OllamaHost = expandEnv(cfg.LLM.OllamaHost)
	cfg.State.Path = expandEnv(cfg.State.Path)
	cfg.Logging.File = expandEnv(cfg.Logging.File)
	cfg.Classifier.KeywordsFile = expandEnv(cfg.Classifier.KeywordsFile)

	if len(cfg.Tools) == 0 {
		cfg.Tools = append([]string(nil), DefaultTools...)
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.timeout", d.LLM.Timeout.String())
	v.SetDefault("llm.ollama_host", "")
	v.SetDefault("llm.bedrock.enabled", false)
	v.SetDefault("llm.bedrock.region", "")
	v.SetDefault("llm.bedrock.profile", "")

	v.SetDefault("orchestrator.result_limit", d.Orchestrator.ResultLimit)
	v.SetDefault("orchestrator.context_entries", d.Orchestrator.ContextEntries)
	v.SetDefault("orchestrator.context_result_limit", d.Orchestrator.ContextResultLimit)
	v.SetDefault("orchestrator.max_turns", d.Orchestrator.MaxTurns)
	v.SetDefault("orchestrator.decompose_attempts", d.Orchestrator.DecomposeAttempts)
	v.SetDefault("orchestrator.on_redecompose", d.Orchestrator.OnRedecompose)

	v.SetDefault("classifier.keywords_file", "")

	v.SetDefault("state.enabled", d.State.Enabled)
	v.SetDefault("state.path", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", "")

	v.SetDefault("signals.dir", d.Signals.Dir)
	v.SetDefault("metrics.addr", "")
}

// getUserConfigDir returns the XDG config directory for stepwise.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stepwise")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "stepwise")
	}
	return filepath.Join(home, ".config", "stepwise")
}

// findProjectConfig searches for .stepwise.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".stepwise.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "anthropic",
			MaxTokens: 4096,
			Timeout:   2 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			ResultLimit:        500,
			ContextEntries:     5,
			ContextResultLimit: 300,
			MaxTurns:           50,
			DecomposeAttempts:  2,
			OnRedecompose:      "replace",
		},
		State: StateConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Signals: SignalsConfig{
			Dir: filepath.Join(".stepwise", "signals"),
		},
		Tools: append([]string(nil), DefaultTools...),
	}
}
