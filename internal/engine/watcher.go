package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	defaultIgnoreTimeout   = time.Second
	defaultCleanupInterval = 15 * time.Second
	watcherEventBuffer     = 64
	defaultDebounceTimeout = 50 * time.Millisecond
)

// watcher is a debounced filesystem watcher over one local root, adapted
// for the engine's fast-path trigger: a burst of writes collapses into a
// single notification, and a path the propagator itself just touched is
// suppressed for one round trip via IgnoreOnce so the engine doesn't
// immediately re-discover its own write.
type watcher struct {
	root string

	rawEvents chan notify.EventInfo
	events    chan struct{}

	ignoreMu sync.Mutex
	ignore   map[string]time.Time

	debounceMu      sync.Mutex
	pending         bool
	debounceTimer   *time.Timer
	debounceTimeout time.Duration
	cleanupInterval time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

func newWatcher(root string) *watcher {
	return &watcher{
		root:            root,
		ignore:          make(map[string]time.Time),
		debounceTimeout: defaultDebounceTimeout,
		cleanupInterval: defaultCleanupInterval,
		done:            make(chan struct{}),
	}
}

// Start begins watching root recursively. Events() carries a coalesced
// "something changed" signal, not individual paths — discovery re-walks
// the whole tree on every run regardless of which path triggered it.
func (w *watcher) Start(ctx context.Context) error {
	w.rawEvents = make(chan notify.EventInfo, watcherEventBuffer)
	w.events = make(chan struct{}, 1)

	if err := notify.Watch(w.root+"/...", w.rawEvents, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.filterEvents(ctx)
	w.wg.Add(1)
	go w.cleanupExpiredEntries(ctx)
	return nil
}

func (w *watcher) Stop() {
	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()
}

func (w *watcher) Events() <-chan struct{} {
	return w.events
}

// IgnoreOnce suppresses the next event for path for one second, used right
// after the propagator writes path so the watcher doesn't trigger an
// immediate, pointless extra run.
func (w *watcher) IgnoreOnce(path string) {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	w.ignore[path] = time.Now().Add(defaultIgnoreTimeout)
}

func (w *watcher) isIgnored(path string) bool {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	expiry, ok := w.ignore[path]
	if !ok {
		return false
	}
	delete(w.ignore, path)
	return time.Now().Before(expiry)
}

func (w *watcher) filterEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.rawEvents:
			if !ok {
				return
			}
			if w.isIgnored(ev.Path()) {
				continue
			}
			w.debounce()
		}
	}
}

// debounce collapses a burst of events arriving within debounceTimeout into
// a single signal on Events(), matching the write-then-flush pattern of a
// file being written in successive chunks.
func (w *watcher) debounce() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	w.pending = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceTimeout, w.flush)
}

func (w *watcher) flush() {
	w.debounceMu.Lock()
	if !w.pending {
		w.debounceMu.Unlock()
		return
	}
	w.pending = false
	w.debounceMu.Unlock()

	select {
	case w.events <- struct{}{}:
	default:
		slog.Debug("watcher: event channel full, signal dropped")
	}
}

func (w *watcher) cleanupExpiredEntries(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.ignoreMu.Lock()
			now := time.Now()
			for p, expiry := range w.ignore {
				if now.After(expiry) {
					delete(w.ignore, p)
				}
			}
			w.ignoreMu.Unlock()
		}
	}
}
