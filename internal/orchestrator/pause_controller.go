package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStopped is returned by WaitIfPaused once Stop has been called.
var ErrStopped = errors.New("execution stopped")

// PauseController gates a Runner between turns. Pause holds the next
// dispatch until Resume; Stop is final.
type PauseController struct {
	mu sync.Mutex
	// resumed is non-nil while paused and closed on Resume.
	resumed chan struct{}
	stopped chan struct{}
	logger  *zap.Logger
}

// NewPauseController creates a running (unpaused) controller.
func NewPauseController(logger *zap.Logger) *PauseController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PauseController{
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Pause holds dispatch of the next task.
func (p *PauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resumed == nil {
		p.resumed = make(chan struct{})
		p.logger.Info("paused, no further tasks will be dispatched")
	}
}

// Resume releases a pause.
func (p *PauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resumed != nil {
		close(p.resumed)
		p.resumed = nil
		p.logger.Info("resumed")
	}
}

// Stop ends the run at the next turn boundary and releases any waiter.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.stopped:
	default:
		close(p.stopped)
		p.logger.Info("stop requested")
	}
}

// IsPaused reports whether dispatch is held.
func (p *PauseController) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resumed != nil
}

// IsStopped reports whether Stop has been called.
func (p *PauseController) IsStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

// WaitIfPaused returns nil immediately when running, otherwise blocks until
// Resume. It returns ErrStopped after Stop and ctx.Err() on cancellation.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	for {
		if p.IsStopped() {
			return ErrStopped
		}
		p.mu.Lock()
		resumed := p.resumed
		p.mu.Unlock()
		if resumed == nil {
			return nil
		}

		select {
		case <-resumed:
			// Paused again before we woke up is handled by the next iteration.
		case <-p.stopped:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
