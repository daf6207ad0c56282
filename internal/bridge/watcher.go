package bridge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"nova/internal/logging"
)

// InboxWatcher watches the bridge inbox and fires a callback when new
// files settle, so correspondent replies land before the next scheduled
// poll. The periodic poll remains the contract; the watcher only
// accelerates it, and its failure is non-fatal.
type InboxWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	onActivity  func()
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewInboxWatcher builds a watcher over the bridge's inbox. onActivity is
// invoked from the watcher goroutine after events settle; callers hand in
// something cheap (typically a poll trigger).
func NewInboxWatcher(b *Bridge, onActivity func()) (*InboxWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &InboxWatcher{
		watcher:     w,
		dir:         b.InboxDir(),
		onActivity:  onActivity,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // settle window for partial writes
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the loop runs in its own goroutine.
func (w *InboxWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.BridgeWarn("InboxWatcher: failed to ensure inbox dir %s: %v", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		logging.BridgeWarn("InboxWatcher: watch failed on %s: %v", w.dir, err)
	} else {
		logging.Bridge("InboxWatcher: watching %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *InboxWatcher) Stop() {
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
		logging.BridgeError("InboxWatcher: close failed: %v", err)
	}
	logging.Bridge("InboxWatcher: stopped")
}

func (w *InboxWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	sweep := time.NewTicker(100 * time.Millisecond)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.BridgeDebug("InboxWatcher: context cancelled")
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
			logging.BridgeWarn("InboxWatcher: %v", err)

		case <-sweep.C:
			w.fireSettled()
		}
	}
}

func (w *InboxWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") {
		return
	}
	logging.BridgeDebug("InboxWatcher: %s on %s", event.Op, name)

	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// fireSettled invokes the callback once for all events older than the
// debounce window. Rapid writes to the same file collapse into one call.
func (w *InboxWatcher) fireSettled() {
	w.mu.Lock()
	now := time.Now()
	settled := 0
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			delete(w.debounceMap, path)
			settled++
		}
	}
	w.mu.Unlock()

	if settled > 0 && w.onActivity != nil {
		w.onActivity()
	}
}
