package session

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dhth/agx/internal/logging"
)

// ContextWatcher reloads a ProjectContext whenever AGENTS.md is written,
// created, removed or renamed.
type ContextWatcher struct {
	watcher *fsnotify.Watcher
	context *ProjectContext
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// NewContextWatcher watches the directory holding pc's file. The directory
// is watched rather than the file so that a file created later, or replaced
// by an editor's rename, is still picked up.
func NewContextWatcher(pc *ProjectContext) (*ContextWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(pc.Path())); err != nil {
		w.Close()
		return nil, err
	}

	return &ContextWatcher{
		watcher: w,
		context: pc,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching.
func (w *ContextWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
}

func (w *ContextWatcher) run() {
	defer close(w.doneCh)

	target := filepath.Base(w.context.Path())
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("project context watcher error")
		}
	}
}

func (w *ContextWatcher) reload() {
	if err := w.context.Reload(); err != nil {
		if errors.Is(err, ErrProjectContextTooLarge) {
			logging.Warn().Err(err).Msg("keeping previous project context")
			return
		}
		logging.Error().Err(err).Msg("couldn't reload project context")
		return
	}
	logging.Info().
		Str("path", w.context.Path()).
		Int("bytes", len(w.context.Content())).
		Msg("project context reloaded")
}

// Stop stops watching and releases the underlying watcher.
func (w *ContextWatcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
