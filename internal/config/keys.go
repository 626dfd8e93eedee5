package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when the anthropic provider has no key and Bedrock is off.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// apiKeyEnvVars are checked in order before the config file.
var apiKeyEnvVars = []string{"STEPWISE_LLM_API_KEY", "ANTHROPIC_API_KEY"}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "bedrock"
	KeySourceNone    KeySource = "none"
)

// RequiresAPIKey reports whether the configured provider needs an Anthropic key.
func (c *Config) RequiresAPIKey() bool {
	return strings.EqualFold(c.LLM.Provider, "anthropic") && !c.LLM.Bedrock.Enabled
}

// GetAPIKey returns the Anthropic API key, checking the environment before the config file.
func GetAPIKey(cfg *Config) (string, error) {
	key, _ := resolveAPIKey(cfg)
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg != nil && cfg.LLM.Bedrock.Enabled {
		return KeySourceBedrock
	}
	_, src := resolveAPIKey(cfg)
	return src
}

// keyFromEnv reports whether key was supplied by an environment variable,
// so Save does not copy it into a config file.
func keyFromEnv(key string) bool {
	if key == "" {
		return false
	}
	for _, name := range apiKeyEnvVars {
		if os.Getenv(name) == key {
			return true
		}
	}
	return false
}

func resolveAPIKey(cfg *Config) (string, KeySource) {
	for _, name := range apiKeyEnvVars {
		if key := os.Getenv(name); key != "" {
			return key, KeySourceEnv
		}
	}

	if cfg != nil && cfg.LLM.APIKey != "" {
		// Unresolved ${VAR} references count as unset.
		key := os.ExpandEnv(cfg.LLM.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// ValidateAPIKey performs basic format validation on an API key.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
