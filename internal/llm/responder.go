// Package llm provides the language-model responders used by stepwise.
// A responder turns a prompt into free-form text; callers never rely on
// its output being well-formed.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ErrEmptyPrompt is returned when a request carries no prompt text.
var ErrEmptyPrompt = errors.New("empty prompt")

// Request is a single prompt sent to a responder.
type Request struct {
	// System is the optional system prompt.
	System string
	// Prompt is the user-turn text.
	Prompt string
	// MaxTokens overrides the responder default when positive.
	MaxTokens int64
}

// Validate checks that the request can be sent.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Responder produces free-form text for a prompt.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, req Request) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Config selects and configures a responder.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	MaxTokens int64
	// BaseURL overrides the Anthropic API endpoint.
	BaseURL string

	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string

	// OllamaHost is the Ollama server URL; empty uses OLLAMA_HOST.
	OllamaHost string
}

// New creates the responder named by cfg.Provider.
func New(cfg Config) (Responder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderAnthropic:
		return NewAnthropic(AnthropicConfig{
			Model:         cfg.Model,
			APIKey:        cfg.APIKey,
			MaxTokens:     cfg.MaxTokens,
			BaseURL:       cfg.BaseURL,
			UseAWSBedrock: cfg.UseAWSBedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
		})
	case ProviderOllama:
		return NewOllama(OllamaConfig{
			Host:  cfg.OllamaHost,
			Model: cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// TokenTracker tracks token usage across calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
