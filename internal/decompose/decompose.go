// Package decompose turns a free-form goal into an ordered task list.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/llm"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// ErrNoSteps is returned when every attempt produced a response without a
// parseable step list.
var ErrNoSteps = errors.New("decomposition response contained no steps")

// DefaultAttempts is how many times Decompose asks the responder before
// giving up.
const DefaultAttempts = 2

// Result is the outcome of one decomposition.
type Result struct {
	// Tasks is the parsed task list.
	Tasks []models.Task
	// Response is the raw text of the last responder reply.
	Response string
	// Attempts is the number of responder calls made.
	Attempts int
}

// Decomposer asks a language model for a plan and parses it.
type Decomposer struct {
	responder llm.Responder
	parser    Parser
	attempts  int
	logger    *zap.Logger
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithParser overrides the response parser.
func WithParser(p Parser) Option {
	return func(d *Decomposer) { d.parser = p }
}

// WithAttempts sets how many responder calls are made before ErrNoSteps.
func WithAttempts(n int) Option {
	return func(d *Decomposer) {
		if n > 0 {
			d.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Decomposer) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a new Decomposer with the given responder.
func New(responder llm.Responder, opts ...Option) *Decomposer {
	d := &Decomposer{
		responder: responder,
		parser:    DefaultParser,
		attempts:  DefaultAttempts,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose asks for a step list for goal. A reply without the marker or
// without parseable items is re-requested up to the configured number of
// attempts. Responder errors abort immediately.
func (d *Decomposer) Decompose(ctx context.Context, goal string) (Result, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return Result{}, fmt.Errorf("decompose: empty goal")
	}

	req := llm.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(decompositionPrompt, goal, d.parser.marker()),
	}

	var result Result
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		text, err := d.responder.Respond(ctx, req)
		result.Attempts = attempt
		if err != nil {
			return result, fmt.Errorf("decomposition request: %w", err)
		}
		result.Response = text

		tasks := d.parser.Extract(text)
		if len(tasks) > 0 {
			result.Tasks = tasks
			d.logger.Info("decomposition parsed",
				zap.Int("tasks", len(tasks)),
				zap.Int("attempt", attempt))
			return result, nil
		}

		d.logger.Warn("decomposition not ready",
			zap.Int("attempt", attempt),
			zap.Bool("marker_present", d.parser.HasMarker(text)))
	}

	return result, fmt.Errorf("%w after %d attempts", ErrNoSteps, result.Attempts)
}

// Answer produces a direct reply for a request routed as simple.
func (d *Decomposer) Answer(ctx context.Context, request string) (string, error) {
	text, err := d.responder.Respond(ctx, llm.Request{
		System: directAnswerSystemPrompt,
		Prompt: request,
	})
	if err != nil {
		return "", fmt.Errorf("direct answer: %w", err)
	}
	return text, nil
}
