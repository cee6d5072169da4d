// Package engine drives one sync run end to end — fetch capabilities,
// reconcile selective-sync lists, walk the three-way diff, hand the result
// to the propagator, and retire the outcome into the blacklist — and owns
// the loop that repeats that run on a timer and in response to local
// filesystem activity.
//
// The invariants below travel with this package verbatim because it is
// the one place that owns a whole run from start to finish.
//
// # 5. CONCURRENCY & RESOURCE MODEL
//
//   - Scheduling model: a single coordinator task drives the run. Network
//     I/O is performed by a pool of cooperative workers with bounded
//     concurrency (parallel_network_jobs). Filesystem I/O is blocking; it
//     runs on worker tasks but is considered fast relative to network.
//   - Suspension points: any network request; any file read/write; any
//     journal write. The coordinator may not hold a journal transaction
//     across a suspension point that awaits network I/O.
//   - Ordering guarantees: propagation respects the job-graph partial
//     order. Within one directory, operations on the same path are
//     strictly serial. Between directories, the only cross-directory
//     constraint is the rename-before-delete rule for overlapping prefixes.
//   - Cancellation: cooperative; every worker checks a run-level
//     cancellation flag between I/O operations, and in-flight HTTP
//     requests expose an abort operation. Chunked upload state persists
//     through cancellation.
//   - Timeouts: every HTTP request carries a configurable deadline.
//     Timeouts raise errors classified per the remote package's error
//     taxonomy.
//   - Shared state: the Journal is the only shared mutable state. All
//     other mutation is owned by a single task. Journal writes are
//     serialized; reads may be concurrent.
//   - Resource scoping: every transfer acquires a streaming file handle
//     and network connection; both are released on all exit paths,
//     including abort.
//
// # 9. DESIGN NOTES
//
//   - Cyclic references: parent/child navigation uses path keys, not
//     pointer cycles. A directory's children are looked up by prefix scan
//     of the journal; no intrusive pointers.
//   - Polymorphic jobs: the propagator dispatches over a tagged variant
//     rather than dynamic type hierarchies. Each variant carries its
//     inputs; the scheduler needs only the path, dependencies, and
//     outcome.
//   - Concurrency model: explicit channels and a semaphore between
//     discovery, the scheduler, and workers, rather than signals/slots and
//     an event loop. Cancellation is a shared context plus per-request
//     abort handles.
//   - Global state: none in the core. HTTP timeout and chunk sizes are
//     per-engine configuration values.
//   - Placeholder virtual files: abstracted behind a PlaceholderProvider
//     capability set (fsabs.OffProvider, fsabs.SuffixProvider). The engine
//     installs no provider, and discovery does not consult one: when a checksum comparison needs a local
//     checksum it hashes the file's on-disk bytes, and it does not use the
//     journal's stored checksum in place of that hash for a dehydrated
//     file.
//
// # GLOSSARY
//
//   - Dehydrated placeholder: a filesystem entry that advertises size and
//     modtime but has no bytes; reads trigger hydration via the OS or a
//     provider.
//   - ETag: opaque version token; changes on any content or metadata
//     change server-side.
//   - FileId: stable server-assigned identifier, preserved across renames.
//   - PROPFIND: HTTP method returning a 207 Multi-Status XML body
//     enumerating properties of a URL and (optionally) its children.
//   - Selective sync: a per-folder list of subpaths excluded from
//     propagation.
//   - Transfer id: client-chosen identifier for a resumable chunked
//     upload session.
//   - Fake conflict: apparent change on the remote (different etag) whose
//     checksum proves the content is identical to local; skipped.
//   - Conflict copy: "<base> (conflicted copy <timestamp>).<ext>" — local
//     file set aside before being overwritten by a remote-wins resolution.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oc-sync/davsync/internal/blacklist"
	"github.com/oc-sync/davsync/internal/caps"
	"github.com/oc-sync/davsync/internal/discovery"
	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
	"github.com/oc-sync/davsync/internal/propagator"
	"github.com/oc-sync/davsync/internal/remote"
)

// ErrSyncAlreadyRunning is returned by RunSync when another run is already
// in progress; the timer loop logs it at debug level and waits for the
// next tick rather than treating it as a real failure.
var ErrSyncAlreadyRunning = errors.New("sync already running")

// defaultInterval is how often Start re-runs discovery when nothing has
// woken it early via the watcher.
const defaultInterval = 30 * time.Second

// capabilitiesPath is the default OCS endpoint davsync queries once per
// run for the server's checksum preference and filename rules.
const capabilitiesPath = "/ocs/v2.php/cloud/capabilities?format=json"

// Engine owns one local/remote pairing: it runs discovery, hands the
// result to a Propagator, and persists the outcome to the Journal and
// Blacklist. It is safe to call RunSync concurrently with itself — the
// second caller gets ErrSyncAlreadyRunning rather than racing the first.
type Engine struct {
	LocalRoot  string
	RemoteRoot string

	Client    *remote.Client
	Journal   *journal.Journal
	Blacklist *blacklist.Blacklist
	Ignore    *fsabs.IgnoreList
	Checksums *fsabs.ChecksumCache
	Options   caps.Options

	// CapabilitiesPath overrides capabilitiesPath for tests and
	// non-standard server layouts.
	CapabilitiesPath string
	// Interval overrides defaultInterval.
	Interval time.Duration
	// WatchEnabled starts a filesystem watcher alongside the timer loop so
	// local edits trigger a run without waiting for the next tick.
	WatchEnabled bool

	// Now overrides time.Now, threaded through to the Propagator for
	// deterministic conflict-copy naming in tests.
	Now func() time.Time

	emitter

	mu      sync.Mutex
	running bool

	caps   *caps.Capabilities
	watch  *watcher
	cancel context.CancelFunc
}

// Start runs one sync immediately, then keeps running on Interval (via a
// self-resetting timer, never a ticker, so a slow run can't queue a second
// one the instant it finishes) until ctx is cancelled. If WatchEnabled, a
// filesystem event also wakes the loop early and resets the timer.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if success, err := e.RunSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial sync failed", "error", err)
	} else if !success {
		slog.Warn("initial sync completed with errors")
	}

	interval := e.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	var watchEvents <-chan struct{}
	if e.WatchEnabled {
		e.watch = newWatcher(e.LocalRoot)
		if err := e.watch.Start(ctx); err != nil {
			return fmt.Errorf("start file watcher: %w", err)
		}
		watchEvents = e.watch.Events()
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if e.watch != nil {
				e.watch.Stop()
			}
			return nil
		case <-timer.C:
			e.runAndLog(ctx)
			timer.Reset(interval)
		case <-watchEvents:
			e.runAndLog(ctx)
			timer.Reset(interval)
		}
	}
}

// Stop cancels the context Start is running under; Start returns once the
// in-flight run (if any) notices cancellation.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) runAndLog(ctx context.Context) {
	success, err := e.RunSync(ctx)
	switch {
	case errors.Is(err, ErrSyncAlreadyRunning):
		slog.Debug("sync already running, skipping this tick")
	case err != nil && !errors.Is(err, context.Canceled):
		slog.Error("sync run failed", "error", err)
	case !success:
		slog.Warn("sync run completed with errors")
	}
}

// RunSync performs exactly one full discovery-and-propagate pass: fetch
// capabilities, reconcile selective-sync state, walk the three-way diff,
// run the resulting job graph, and retire every outcome into the
// blacklist. It returns success=false (with a nil error) whenever the run
// completed but at least one item ended in a fatal or normal error —
// only a problem that stopped the run before propagation started (a
// capabilities fetch failure, a root PROPFIND failure), or a cancelled ctx
// that stopped the propagator from scheduling further jobs, is returned as
// err.
func (e *Engine) RunSync(ctx context.Context) (bool, error) {
	if !e.tryLock() {
		return false, ErrSyncAlreadyRunning
	}
	defer e.unlock()

	start := time.Now()

	fetched, err := e.Client.FetchCapabilities(ctx, e.capabilitiesPath())
	if err != nil {
		e.emit(Event{Kind: EventSyncError, Message: err.Error(), Category: "fatal"})
		e.emit(Event{Kind: EventFinished, Success: false})
		return false, fmt.Errorf("fetch capabilities: %w", err)
	}
	parsed, err := caps.ParseCapabilities(fetched)
	if err != nil {
		e.emit(Event{Kind: EventSyncError, Message: err.Error(), Category: "fatal"})
		e.emit(Event{Kind: EventFinished, Success: false})
		return false, fmt.Errorf("parse capabilities: %w", err)
	}
	e.caps = parsed

	result, err := discovery.Walk(ctx, &discovery.Inputs{
		LocalRoot: e.LocalRoot,
		Journal:   e.Journal,
		Client:    e.Client,
		Caps:      e.caps,
		Ignore:    e.Ignore,
		Checksums: e.Checksums,
		Options:   e.Options,
	})
	if err != nil {
		e.emit(Event{Kind: EventSyncError, Message: err.Error(), Category: "fatal"})
		e.emit(Event{Kind: EventFinished, Success: false})
		return false, fmt.Errorf("discovery walk: %w", err)
	}
	for dir, msg := range result.SoftErrors {
		e.emit(Event{Kind: EventSyncError, Message: fmt.Sprintf("%s: %s", dir, msg), Category: "soft"})
	}

	items := e.dropBlacklisted(result.Items)
	e.emit(Event{Kind: EventAboutToPropagate, Items: items})

	jobs := propagator.BuildGraph(items)
	prop := &propagator.Propagator{
		LocalRoot:  e.LocalRoot,
		RemoteRoot: e.RemoteRoot,
		Remote:     e.Client,
		Journal:    e.Journal,
		Caps:       e.caps,
		Options:    e.Options,
		Checksums:  e.Checksums,
		Now:        e.Now,
	}
	results, err := prop.Run(ctx, jobs)
	if err != nil {
		e.emit(Event{Kind: EventSyncError, Message: err.Error(), Category: "fatal"})
		e.emit(Event{Kind: EventFinished, Success: false})
		return false, fmt.Errorf("run propagation: %w", err)
	}

	itemByPath := make(map[string]*discovery.SyncItem, len(items))
	for _, it := range items {
		itemByPath[it.Path] = it
	}

	success := true
	for _, r := range results {
		e.retireResult(r)
		if it := itemByPath[r.Path]; it != nil {
			e.emit(Event{Kind: EventItemCompleted, Item: it, Status: r.Status.String()})
		}
		if r.Status == propagator.StatusFatalError || r.Status == propagator.StatusNormalError {
			success = false
			if e.watch != nil {
				e.watch.IgnoreOnce(r.Path)
			}
			continue
		}
		if e.watch != nil && r.Status != propagator.StatusFileIgnored {
			e.watch.IgnoreOnce(r.Path)
		}
	}

	e.emit(Event{Kind: EventFinished, Success: success})
	slog.Debug("sync run finished", "items", len(items), "jobs", len(jobs), "success", success, "elapsed", time.Since(start))
	return success, nil
}

// retireResult clears a path's blacklist entry on success and records a
// fresh one on failure, so the next run's dropBlacklisted can consult
// IsBlocked before even trying a path that's in backoff.
func (e *Engine) retireResult(r propagator.Result) {
	if e.Blacklist == nil {
		return
	}
	switch r.Status {
	case propagator.StatusSuccess, propagator.StatusRestoration, propagator.StatusConflict:
		_ = e.Blacklist.Clear(r.Path)
	case propagator.StatusSoftError:
		_ = e.Blacklist.Record(r.Path, journal.ErrorSoft, errMessage(r.Err))
	case propagator.StatusNormalError:
		_ = e.Blacklist.Record(r.Path, journal.ErrorNormal, errMessage(r.Err))
	case propagator.StatusFatalError:
		_ = e.Blacklist.Record(r.Path, journal.ErrorFatal, errMessage(r.Err))
	}
}

func (e *Engine) dropBlacklisted(items []*discovery.SyncItem) []*discovery.SyncItem {
	if e.Blacklist == nil {
		return items
	}
	out := make([]*discovery.SyncItem, 0, len(items))
	for _, it := range items {
		blocked, err := e.Blacklist.IsBlocked(it.Path)
		if err == nil && blocked {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (e *Engine) capabilitiesPath() string {
	if e.CapabilitiesPath != "" {
		return e.CapabilitiesPath
	}
	return capabilitiesPath
}

func (e *Engine) tryLock() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) unlock() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
