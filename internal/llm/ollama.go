package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "llama3.1"

// OllamaConfig contains configuration for an Ollama responder.
type OllamaConfig struct {
	// Host is the server URL. Empty reads OLLAMA_HOST.
	Host string
	// Model is the local model tag.
	Model string
	// HTTPClient overrides the transport; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// OllamaResponder answers prompts with a local Ollama server.
type OllamaResponder struct {
	client  *api.Client
	model   string
	tracker *TokenTracker
}

// NewOllama creates a responder backed by the Ollama API client.
func NewOllama(cfg OllamaConfig) (*OllamaResponder, error) {
	var client *api.Client
	if cfg.Host != "" {
		base, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host: %w", err)
		}
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(base, httpClient)
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		client = c
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	return &OllamaResponder{
		client:  client,
		model:   model,
		tracker: NewTokenTracker(),
	}, nil
}

// Model returns the configured model tag.
func (r *OllamaResponder) Model() string {
	return r.model
}

// Tracker returns the token tracker for this responder.
func (r *OllamaResponder) Tracker() *TokenTracker {
	return r.tracker
}

// Respond runs a non-streaming generate call.
func (r *OllamaResponder) Respond(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	stream := false
	genReq := &api.GenerateRequest{
		Model:  r.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
	}
	if req.MaxTokens > 0 {
		genReq.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	var out strings.Builder
	err := r.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		if resp.Done {
			r.tracker.Add(int64(resp.PromptEvalCount), int64(resp.EvalCount))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
}
