package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pathways/pkg/logging"
)

// debounceWindow coalesces bursts of filesystem events for one token write.
const debounceWindow = 250 * time.Millisecond

// TokenWatcher observes the token file on disk and reports external
// changes, so a login or logout performed by another process shows up in
// this one. The parent directory is watched because editors and atomic
// writers replace files rather than modify them in place.
type TokenWatcher struct {
	mu       sync.Mutex
	path     string
	onChange func()
	watcher  *fsnotify.Watcher
	running  bool
	stopCh   chan struct{}
}

// NewTokenWatcher creates a watcher for the given token file path.
func NewTokenWatcher(path string, onChange func()) *TokenWatcher {
	return &TokenWatcher{
		path:     path,
		onChange: onChange,
	}
}

// Start begins watching. It fails if the parent directory cannot be
// watched; the token file itself does not need to exist yet.
func (w *TokenWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh

	go w.loop(ctx, watcher, stopCh)
	logging.Debug("Session", "Watching token file %s", w.path)
	return nil
}

// Stop halts the watcher. Safe to call when not running.
func (w *TokenWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	w.watcher.Close()
}

func (w *TokenWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher, stopCh chan struct{}) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, func() {
				logging.Debug("Session", "Token file changed externally")
				w.onChange()
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("Session", "Token watcher error: %v", err)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
