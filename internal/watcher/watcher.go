// Package watcher observes git ref updates so the server can trigger
// incremental indexing when new commits land.
//
// It watches .git/logs (every ref update appends to a log file there)
// rather than individual ref files, which git replaces atomically in a
// way that breaks per-file watches.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a single git operation
// produces.
const DefaultDebounce = 500 * time.Millisecond

// RefWatcher emits a notification when the repository's history changes.
type RefWatcher struct {
	repoPath string
	debounce time.Duration
	logger   *slog.Logger

	fsw    *fsnotify.Watcher
	output chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewRefWatcher creates a watcher for the repository at repoPath.
func NewRefWatcher(repoPath string, debounce time.Duration, logger *slog.Logger) (*RefWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logsDir := filepath.Join(repoPath, ".git", "logs")
	if _, err := os.Stat(logsDir); err != nil {
		return nil, fmt.Errorf("cannot watch git logs: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(logsDir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", logsDir, err)
	}

	w := &RefWatcher{
		repoPath: repoPath,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		output:   make(chan struct{}, 1),
	}
	go w.loop()
	return w, nil
}

// Output returns the channel receiving one notification per coalesced
// burst of ref updates.
func (w *RefWatcher) Output() <-chan struct{} {
	return w.output
}

func (w *RefWatcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ref_watcher_error", slog.String("error", err.Error()))
		}
	}
}

// schedule arms the debounce timer; further events within the window
// reset it so one git operation yields one notification.
func (w *RefWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *RefWatcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	select {
	case w.output <- struct{}{}:
	default:
		// A notification is already pending; coalesce.
	}
}

// Stop stops the watcher and closes the output channel. Safe to call
// multiple times.
func (w *RefWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	_ = w.fsw.Close()
	close(w.output)
}
