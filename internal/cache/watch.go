package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"payloadforge/internal/logging"
	"payloadforge/internal/store"

	"github.com/fsnotify/fsnotify"
)

// ManifestWatcher watches a directory store's manifest.json and
// re-initializes the resolver when the export job (or a write-back)
// replaces it.
type ManifestWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	onChange    func()
	pendingAt   time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	reloads atomic.Int64
}

// NewManifestWatcher creates a watcher over dir that calls onChange after
// manifest.json settles.
func NewManifestWatcher(dir string, onChange func()) (*ManifestWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ManifestWatcher{
		watcher:     watcher,
		dir:         dir,
		onChange:    onChange,
		debounceDur: 250 * time.Millisecond, // Export jobs rewrite in bursts
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// WatchManifest starts a watcher that calls r.Reinitialize. Stop it when done.
func (r *Resolver) WatchManifest(ctx context.Context, dir string) (*ManifestWatcher, error) {
	w, err := NewManifestWatcher(dir, r.Reinitialize)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.watcher.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching. It is non-blocking.
func (w *ManifestWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.ManifestWarn("watcher: failed to create %s: %v (continuing anyway)", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Manifest("watcher: watching %s", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *ManifestWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.ManifestWarn("watcher: error closing: %v", err)
	}
	logging.Manifest("watcher: stopped")
}

// Reloads returns how many times onChange has fired.
func (w *ManifestWatcher) Reloads() int64 {
	return w.reloads.Load()
}

func (w *ManifestWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.ManifestWarn("watcher error: %v", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *ManifestWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != store.ManifestFile {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	logging.Manifest("watcher: %s %s", event.Op, event.Name)

	w.mu.Lock()
	w.pendingAt = time.Now()
	w.mu.Unlock()
}

func (w *ManifestWatcher) flush() {
	w.mu.Lock()
	if w.pendingAt.IsZero() || time.Since(w.pendingAt) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pendingAt = time.Time{}
	w.mu.Unlock()

	w.reloads.Add(1)
	if w.onChange != nil {
		w.onChange()
	}
}
