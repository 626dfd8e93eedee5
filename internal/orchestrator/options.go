package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/decompose"
	"github.com/ShayCichocki/stepwise/internal/outcome"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// RedecomposePolicy decides what happens when a decomposition arrives for a
// session that already has a task list.
type RedecomposePolicy string

const (
	// RedecomposeReplace discards the previous list, log, and slot.
	RedecomposeReplace RedecomposePolicy = "replace"
	// RedecomposeReject refuses the new list with ErrAlreadyDecomposed.
	RedecomposeReject RedecomposePolicy = "reject"
)

// ParseRedecomposePolicy validates a policy name. Empty selects replace.
func ParseRedecomposePolicy(s string) (RedecomposePolicy, error) {
	switch RedecomposePolicy(s) {
	case "", RedecomposeReplace:
		return RedecomposeReplace, nil
	case RedecomposeReject:
		return RedecomposeReject, nil
	default:
		return "", fmt.Errorf("unknown redecompose policy %q (want replace or reject)", s)
	}
}

// Defaults for Config.
const (
	DefaultContextEntries     = 5
	DefaultContextResultLimit = 300
)

// DefaultTools are the capability names advertised to the executor.
var DefaultTools = []string{"braveSearch", "fetch", "fileSystem", "time", "office_word", "office_excel"}

// Config holds the tunables of an Orchestrator.
type Config struct {
	// SessionID identifies the session to the Recorder.
	SessionID string
	// ResultLimit bounds Task.ExecutionResult, in characters.
	ResultLimit int
	// ContextEntries is how many prior records BuildContext includes.
	ContextEntries int
	// ContextResultLimit bounds each prior result in the context.
	ContextResultLimit int
	// OnRedecompose is the re-decomposition policy.
	OnRedecompose RedecomposePolicy
	// Tools are the capability names listed in executor instructions.
	Tools []string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ResultLimit:        models.MaxResultLength,
		ContextEntries:     DefaultContextEntries,
		ContextResultLimit: DefaultContextResultLimit,
		OnRedecompose:      RedecomposeReplace,
		Tools:              append([]string(nil), DefaultTools...),
	}
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithConfig replaces the configuration. Zero limits fall back to defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		def := DefaultConfig()
		if cfg.ResultLimit <= 0 {
			cfg.ResultLimit = def.ResultLimit
		}
		if cfg.ContextEntries < 0 {
			cfg.ContextEntries = def.ContextEntries
		}
		if cfg.ContextResultLimit <= 0 {
			cfg.ContextResultLimit = def.ContextResultLimit
		}
		if cfg.OnRedecompose == "" {
			cfg.OnRedecompose = def.OnRedecompose
		}
		if cfg.Tools == nil {
			cfg.Tools = def.Tools
		}
		o.cfg = cfg
	}
}

// WithSessionID sets the id passed to the Recorder.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.cfg.SessionID = id }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRecorder persists applied records and state snapshots.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithOutcomeClassifier overrides the execution-output classifier.
func WithOutcomeClassifier(c outcome.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithParser overrides the decomposition parser used by AcceptResponse.
func WithParser(p decompose.Parser) Option {
	return func(o *Orchestrator) { o.parser = p }
}
