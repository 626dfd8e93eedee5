// Package mcpserver exposes the re-entrant task loop over the Model Context
// Protocol so an external agent can drive decomposition, execution and
// confirmation one tool call at a time.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ShayCichocki/stepwise/internal/complexity"
	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/internal/state"
)

// ErrUnknownSession is returned when a tool names a session that does not exist.
var ErrUnknownSession = errors.New("unknown session")

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "stepwise")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// Orchestrator is applied to every session's orchestrator.
	Orchestrator orchestrator.Config

	// Classifier routes classify_request calls. Nil uses the default keywords.
	Classifier *complexity.Classifier

	// Metrics is shared by every session. Optional.
	Metrics *orchestrator.Metrics

	// Archive persists sessions, snapshots and execution records. Optional.
	Archive state.StateStore
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:         "stepwise",
		Version:      "dev",
		Logger:       zap.NewNop(),
		Orchestrator: orchestrator.DefaultConfig(),
	}
}

// Server serves the stepwise tools over MCP.
type Server struct {
	mcp        *mcp.Server
	cfg        Config
	store      *session.Store
	classifier *complexity.Classifier
	logger     *zap.Logger

	mu     sync.Mutex
	orches map[string]*orchestrator.Orchestrator
}

// NewServer creates a Server backed by store. A nil store gets a fresh one.
func NewServer(cfg *Config, store *session.Store) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.Name == "" {
		c.Name = "stepwise"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Classifier == nil {
		c.Classifier = complexity.NewDefault()
	}
	if store == nil {
		store = session.NewStore()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    c.Name,
			Version: c.Version,
		}, nil),
		cfg:        c,
		store:      store,
		classifier: c.Classifier,
		logger:     c.Logger.Named("mcp"),
		orches:     make(map[string]*orchestrator.Orchestrator),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// MCPServer returns the underlying SDK server, for custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Store returns the session store.
func (s *Server) Store() *session.Store {
	return s.store
}

// newSession registers an empty session and, when archiving, its row.
func (s *Server) newSession(goal string) (string, *orchestrator.Orchestrator, error) {
	id, st := s.store.Create()
	if s.cfg.Archive != nil {
		err := s.cfg.Archive.CreateSession(&state.Session{
			ID:         id,
			Goal:       goal,
			Complexity: s.classifier.Classify(goal),
			Mode:       state.ModeMCP,
		})
		if err != nil {
			s.store.Delete(id)
			return "", nil, err
		}
	}
	return id, s.attach(id, st), nil
}

// orchestrator returns the orchestrator for id, restoring it from the
// archive when the session is not in memory.
func (s *Server) orchestrator(id string) (*orchestrator.Orchestrator, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrUnknownSession)
	}

	// Lookup, archive restore and attach happen under one lock so
	// concurrent calls for the same id share one State and Orchestrator.
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.orches[id]; ok {
		return o, nil
	}

	if st, ok := s.store.Get(id); ok {
		return s.attachLocked(id, st), nil
	}

	if s.cfg.Archive != nil {
		sess, err := s.cfg.Archive.GetSession(id)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			st, err := s.cfg.Archive.LoadState(id)
			if err != nil {
				return nil, err
			}
			s.store.Put(id, st)
			s.logger.Info("session restored from archive", zap.String("session_id", id))
			return s.attachLocked(id, st), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
}

func (s *Server) attach(id string, st *session.State) *orchestrator.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachLocked(id, st)
}

// attachLocked returns the orchestrator for id, creating it over st.
// s.mu must be held.
func (s *Server) attachLocked(id string, st *session.State) *orchestrator.Orchestrator {
	if o, ok := s.orches[id]; ok {
		return o
	}

	opts := []orchestrator.Option{
		orchestrator.WithConfig(s.cfg.Orchestrator),
		orchestrator.WithSessionID(id),
		orchestrator.WithLogger(s.cfg.Logger),
	}
	if s.cfg.Metrics != nil {
		opts = append(opts, orchestrator.WithMetrics(s.cfg.Metrics))
	}
	if s.cfg.Archive != nil {
		opts = append(opts, orchestrator.WithRecorder(s.cfg.Archive))
	}
	o := orchestrator.New(st, opts...)
	s.orches[id] = o
	return o
}
