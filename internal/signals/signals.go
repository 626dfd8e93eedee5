// Package signals turns files in a signals directory into stop and pause
// requests for a running execution loop.
//
// Creating <dir>/stop ends the run at the next turn boundary. Creating
// <dir>/pause holds dispatch until the file is removed.
package signals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// StopFile is the signal file name that requests a stop.
	StopFile = "stop"
	// PauseFile is the signal file name that holds dispatch while present.
	PauseFile = "pause"
)

// Target receives signal transitions. orchestrator.PauseController satisfies it.
type Target interface {
	Pause()
	Resume()
	Stop()
}

// Watcher watches a signals directory and forwards changes to a Target.
type Watcher struct {
	dir    string
	target Target
	logger *zap.Logger

	mu      sync.RWMutex
	stopped bool
	paused  bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates the signals directory if needed and applies any signal
// files already present. Call Start to follow later changes.
func NewWatcher(dir string, target Target, logger *zap.Logger) (*Watcher, error) {
	if target == nil {
		return nil, errors.New("signals: nil target")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}

	w := &Watcher{
		dir:    dir,
		target: target,
		logger: logger,
		done:   make(chan struct{}),
	}
	w.Poll()
	return w, nil
}

// Start begins watching. If fsnotify is unavailable it falls back to polling.
func (w *Watcher) Start(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fw.Add(w.dir); err != nil {
			fw.Close()
		}
	}
	if err != nil {
		w.logger.Warn("file watcher unavailable, polling signals", zap.Error(err))
		w.wg.Add(1)
		go w.pollLoop(ctx, time.Second)
		return
	}

	w.watcher = fw
	w.wg.Add(1)
	go w.watchLoop(ctx)
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.wg.Wait()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// ShouldStop reports whether a stop signal has been seen.
func (w *Watcher) ShouldStop() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// ShouldPause reports whether the pause file is present.
func (w *Watcher) ShouldPause() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paused
}

// Poll checks the signal files directly, in case the watcher missed an event.
func (w *Watcher) Poll() {
	w.setStop(exists(filepath.Join(w.dir, StopFile)))
	w.setPause(exists(filepath.Join(w.dir, PauseFile)))
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("signal watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context, interval time.Duration) {
	defer w.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	present := event.Has(fsnotify.Create) || event.Has(fsnotify.Write)
	gone := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)

	switch filepath.Base(event.Name) {
	case StopFile:
		if present {
			w.setStop(true)
		}
	case PauseFile:
		if present {
			w.setPause(true)
		} else if gone {
			w.setPause(false)
		}
	}
}

// setStop is one-way: a stop cannot be withdrawn by deleting the file.
func (w *Watcher) setStop(on bool) {
	if !on {
		return
	}
	w.mu.Lock()
	already := w.stopped
	w.stopped = true
	w.mu.Unlock()
	if !already {
		w.logger.Info("stop signal received", zap.String("dir", w.dir))
		w.target.Stop()
	}
}

func (w *Watcher) setPause(on bool) {
	w.mu.Lock()
	changed := w.paused != on
	w.paused = on
	w.mu.Unlock()
	if !changed {
		return
	}
	if on {
		w.logger.Info("pause signal received", zap.String("dir", w.dir))
		w.target.Pause()
	} else {
		w.logger.Info("pause signal cleared", zap.String("dir", w.dir))
		w.target.Resume()
	}
}

// SendStop creates the stop signal file in dir.
func SendStop(dir string) error {
	return writeSignal(dir, StopFile)
}

// SendPause creates the pause signal file in dir.
func SendPause(dir string) error {
	return writeSignal(dir, PauseFile)
}

// Resume removes the pause signal file from dir.
func Resume(dir string) error {
	if err := os.Remove(filepath.Join(dir, PauseFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearSignals removes both signal files from dir.
func ClearSignals(dir string) error {
	var errs []error
	for _, name := range []string{StopFile, PauseFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeSignal(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)), 0644)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
