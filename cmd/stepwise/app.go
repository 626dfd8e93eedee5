package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/complexity"
	"github.com/ShayCichocki/stepwise/internal/config"
	"github.com/ShayCichocki/stepwise/internal/llm"
	"github.com/ShayCichocki/stepwise/internal/logging"
	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/internal/state"
)

// app bundles what every command needs: the loaded config and a logger.
type app struct {
	cfg *config.Config
	log *logging.Logger
}

// loadApp loads configuration, applies flag overrides and builds the logger.
func loadApp() (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &app{cfg: cfg, log: logger}, nil
}

func (a *app) close() {
	_ = a.log.Close()
}

// responder builds the configured LLM responder with the per-call timeout applied.
func (a *app) responder() (llm.Responder, error) {
	apiKey := ""
	if a.cfg.RequiresAPIKey() {
		key, err := config.GetAPIKey(a.cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or llm.api_key", err)
		}
		apiKey = key
	}

	r, err := llm.New(llm.Config{
		Provider:      a.cfg.LLM.Provider,
		Model:         a.cfg.LLM.Model,
		APIKey:        apiKey,
		MaxTokens:     a.cfg.LLM.MaxTokens,
		UseAWSBedrock: a.cfg.LLM.Bedrock.Enabled,
		AWSRegion:     a.cfg.LLM.Bedrock.Region,
		AWSProfile:    a.cfg.LLM.Bedrock.Profile,
		OllamaHost:    a.cfg.LLM.OllamaHost,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm responder: %w", err)
	}

	a.log.Debug("llm responder ready",
		zap.String("provider", a.cfg.LLM.Provider),
		zap.String("model", a.cfg.LLM.Model),
		zap.String("key_source", string(config.GetAPIKeySource(a.cfg))))

	return withTimeout(r, a.cfg.LLM.Timeout), nil
}

// withTimeout bounds every Respond call by d. Non-positive d disables the bound.
func withTimeout(r llm.Responder, d time.Duration) llm.Responder {
	if d <= 0 {
		return r
	}
	return llm.ResponderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return r.Respond(ctx, req)
	})
}

// classifier returns the complexity classifier, honouring classifier.keywords_file.
func (a *app) classifier() (*complexity.Classifier, error) {
	if a.cfg.Classifier.KeywordsFile == "" {
		return complexity.NewDefault(), nil
	}
	kw, err := complexity.LoadKeywords(a.cfg.Classifier.KeywordsFile)
	if err != nil {
		return nil, err
	}
	return complexity.New(kw), nil
}

// orchestratorConfig maps the orchestrator section onto orchestrator.Config.
func (a *app) orchestratorConfig() (orchestrator.Config, error) {
	policy, err := orchestrator.ParseRedecomposePolicy(a.cfg.Orchestrator.OnRedecompose)
	if err != nil {
		return orchestrator.Config{}, err
	}
	return orchestrator.Config{
		ResultLimit:        a.cfg.Orchestrator.ResultLimit,
		ContextEntries:     a.cfg.Orchestrator.ContextEntries,
		ContextResultLimit: a.cfg.Orchestrator.ContextResultLimit,
		OnRedecompose:      policy,
		Tools:              a.cfg.Tools,
	}, nil
}

// archivePath resolves the session database path.
func (a *app) archivePath() (string, error) {
	if a.cfg.State.Path != "" {
		return a.cfg.State.Path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return state.ProjectDBPath(cwd), nil
}

// openArchive opens the session database. It returns nil when archiving is disabled.
func (a *app) openArchive() (*state.DB, error) {
	if !a.cfg.State.Enabled {
		return nil, nil
	}
	path, err := a.archivePath()
	if err != nil {
		return nil, err
	}
	db, err := state.OpenMigrated(path)
	if err != nil {
		return nil, fmt.Errorf("open session archive: %w", err)
	}
	return db, nil
}
