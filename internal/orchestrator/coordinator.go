package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/complexity"
	"github.com/ShayCichocki/stepwise/internal/decompose"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// Outcome is the result of handling one goal.
type Outcome struct {
	Classification complexity.Classification
	// Answer is set for simple requests.
	Answer string
	// Decomposition and Run are set for complex requests.
	Decomposition *decompose.Result
	Run           *RunResult
}

// Coordinator routes a goal: simple requests get a direct answer, complex
// ones are decomposed and executed.
type Coordinator struct {
	classifier   *complexity.Classifier
	decomposer   *decompose.Decomposer
	executor     Executor
	forceComplex bool
	logger       *zap.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithForceComplex skips classification and always decomposes.
func WithForceComplex(force bool) CoordinatorOption {
	return func(c *Coordinator) { c.forceComplex = force }
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(classifier *complexity.Classifier, decomposer *decompose.Decomposer, executor Executor, opts ...CoordinatorOption) *Coordinator {
	if classifier == nil {
		classifier = complexity.NewDefault()
	}
	c := &Coordinator{
		classifier: classifier,
		decomposer: decomposer,
		executor:   executor,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Executor returns the executor used for runs.
func (c *Coordinator) Executor() Executor {
	return c.executor
}

// Classify explains how goal would be routed.
func (c *Coordinator) Classify(goal string) complexity.Classification {
	cls := c.classifier.Explain(goal)
	if c.forceComplex && cls.Complexity != models.ComplexityComplex {
		cls.Complexity = models.ComplexityComplex
		cls.Reason = "forced"
	}
	return cls
}

// Plan decomposes goal and installs the tasks into orch.
func (c *Coordinator) Plan(ctx context.Context, goal string, orch *Orchestrator) (decompose.Result, error) {
	res, err := c.decomposer.Decompose(ctx, goal)
	if err != nil {
		return res, err
	}
	if err := orch.AcceptDecomposition(res.Tasks); err != nil {
		return res, err
	}
	return res, nil
}

// Handle routes goal and, for complex goals, runs the task list to
// escalation with the given runner options.
func (c *Coordinator) Handle(ctx context.Context, goal string, orch *Orchestrator, opts ...RunnerOption) (Outcome, error) {
	out := Outcome{Classification: c.Classify(goal)}
	c.logger.Info("request classified",
		zap.String("complexity", string(out.Classification.Complexity)),
		zap.String("reason", out.Classification.Reason))

	if out.Classification.Complexity == models.ComplexitySimple {
		answer, err := c.decomposer.Answer(ctx, goal)
		if err != nil {
			return out, err
		}
		out.Answer = answer
		return out, nil
	}

	res, err := c.Plan(ctx, goal, orch)
	out.Decomposition = &res
	if err != nil {
		return out, fmt.Errorf("plan: %w", err)
	}

	opts = append([]RunnerOption{WithRunnerLogger(c.logger)}, opts...)
	run, err := NewRunner(orch, c.executor, opts...).Run(ctx)
	out.Run = &run
	if err != nil {
		return out, fmt.Errorf("run: %w", err)
	}
	return out, nil
}
