package propagator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/oc-sync/davsync/internal/caps"
	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
	"github.com/oc-sync/davsync/internal/remote"
)

// Propagator executes a job graph built by BuildGraph against the local
// filesystem, the remote server, and the journal, honoring DependsOn edges
// and a bound on how many jobs run at once.
type Propagator struct {
	LocalRoot  string
	RemoteRoot string
	Remote     *remote.Client
	Journal    *journal.Journal
	Caps       *caps.Capabilities
	Options    caps.Options
	Checksums  *fsabs.ChecksumCache

	// Now overrides time.Now for conflict-copy naming in tests.
	Now func() time.Time

	// Parallelism bounds how many jobs run concurrently; defaults to
	// Options.ParallelNetworkJobs when zero.
	Parallelism int64

	mu        sync.Mutex
	cancelled bool
}

// Abort stops scheduling any job that has not already started; jobs
// in flight are left to the context's own cancellation. Chunked upload
// sessions are never aborted here — their UploadInfo rows stay valid so a
// later run resumes rather than restarts them.
func (p *Propagator) Abort() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
}

func (p *Propagator) isAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// Run executes every job in jobs, respecting DependsOn, and returns one
// Result per job in the order they were scheduled (not necessarily the
// order jobs was given). A job whose dependency did not succeed is never
// run and instead reports StatusFileIgnored, so a failed directory create
// quietly skips everything under it instead of cascading real errors.
func (p *Propagator) Run(ctx context.Context, jobs []*Job) ([]Result, error) {
	parallelism := p.Parallelism
	if parallelism <= 0 {
		parallelism = int64(p.Options.ParallelNetworkJobs)
	}
	if parallelism <= 0 {
		parallelism = 6
	}
	sem := semaphore.NewWeighted(parallelism)

	byID := make(map[string]*Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	var (
		mu       sync.Mutex
		outcomes = make(map[string]Status, len(jobs))
		results  = make([]Result, 0, len(jobs))
		pending  = append([]*Job{}, jobs...)
		wg       sync.WaitGroup
	)

	ready := func(j *Job) (bool, bool) {
		mu.Lock()
		defer mu.Unlock()
		for _, depID := range j.DependsOn {
			st, done := outcomes[depID]
			if !done {
				return false, false
			}
			if st != StatusSuccess && st != StatusRestoration {
				return true, false // dependency resolved but failed: skip
			}
		}
		return true, true
	}

	for len(pending) > 0 {
		progressed := false
		var next []*Job

		for _, j := range pending {
			can, ok := ready(j)
			if !can {
				next = append(next, j)
				continue
			}
			progressed = true
			if p.isAborted() {
				mu.Lock()
				outcomes[j.ID] = StatusFileIgnored
				results = append(results, Result{JobID: j.ID, Path: j.Item.Path, Kind: j.Kind, Status: StatusFileIgnored})
				mu.Unlock()
				continue
			}
			if !ok {
				mu.Lock()
				outcomes[j.ID] = StatusFileIgnored
				results = append(results, Result{JobID: j.ID, Path: j.Item.Path, Kind: j.Kind, Status: StatusFileIgnored})
				mu.Unlock()
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				return results, err
			}
			wg.Add(1)
			go func(job *Job) {
				defer wg.Done()
				defer sem.Release(1)
				res := p.runJob(ctx, job)
				mu.Lock()
				outcomes[job.ID] = res.Status
				results = append(results, res)
				mu.Unlock()
			}(j)
		}

		wg.Wait()
		if !progressed {
			// a dependency cycle or a reference to a job that never
			// existed — surface every stuck job as FileIgnored rather than
			// spin forever.
			mu.Lock()
			for _, j := range next {
				if _, done := outcomes[j.ID]; !done {
					outcomes[j.ID] = StatusFileIgnored
					results = append(results, Result{JobID: j.ID, Path: j.Item.Path, Kind: j.Kind, Status: StatusFileIgnored,
						Err: errors.New("unresolved dependency")})
				}
			}
			mu.Unlock()
			break
		}
		pending = next
	}

	return results, nil
}

func (p *Propagator) runJob(ctx context.Context, j *Job) Result {
	switch j.Kind {
	case JobMkdirRemote:
		return p.runMkdirRemote(ctx, j)
	case JobMkdirLocal:
		return p.runMkdirLocal(ctx, j)
	case JobUpload:
		return p.runUpload(ctx, j)
	case JobDownload:
		return p.runDownload(ctx, j)
	case JobRename:
		return p.runRename(ctx, j)
	case JobDeleteRemote:
		return p.runDeleteRemote(ctx, j)
	case JobDeleteLocal:
		return p.runDeleteLocal(ctx, j)
	case JobConflict:
		return p.runConflict(ctx, j)
	case JobTypeChange:
		return p.runTypeChange(ctx, j)
	case JobUpdateMetadata:
		return p.runUpdateMetadata(ctx, j)
	default:
		return Result{JobID: j.ID, Path: j.Item.Path, Kind: j.Kind, Status: StatusNormalError, Err: errors.New("unknown job kind")}
	}
}

func (p *Propagator) fail(j *Job, status Status) Result {
	if status == StatusFatalError {
		// a fatal classification marks the item's parent directory and
		// every ancestor with the invalid etag, so the next discovery pass
		// re-lists that subtree and retries the item.
		_ = p.Journal.ScheduleForRemoteDiscovery(parentOf(j.Item.Path))
	}
	return Result{JobID: j.ID, Path: j.Item.Path, Kind: j.Kind, Status: status}
}

func (p *Propagator) localPath(relPath string) string {
	return filepath.Join(p.LocalRoot, filepath.FromSlash(relPath))
}

func (p *Propagator) remotePath(relPath string) string {
	if p.RemoteRoot == "" || p.RemoteRoot == "/" {
		return relPath
	}
	return strings.TrimSuffix(p.RemoteRoot, "/") + "/" + relPath
}

func classifyRemoteErr(err error) Status {
	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Class {
		case remote.ClassSoft:
			return StatusSoftError
		case remote.ClassFatal:
			return StatusFatalError
		case remote.ClassQuota:
			return StatusSoftError
		default:
			return StatusNormalError
		}
	}
	var protoErr *remote.ProtocolError
	if errors.As(err, &protoErr) {
		return StatusFatalError
	}
	return StatusNormalError
}

func classifyLocalErr(err error) Status {
	if os.IsPermission(err) {
		return StatusFatalError
	}
	return StatusNormalError
}
