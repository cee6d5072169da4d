package propagator

import (
	"context"
	"os"
	"time"

	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
)

// runConflict resolves a CONFLICT item by rotating the losing local copy
// aside to a "(conflicted copy ...)" name and pulling the server's version
// down under the original name, the way the teacher's SetMarker rotates a
// previous mark out of the way before applying a new one — except here
// both copies survive, since neither side is authoritative.
func (p *Propagator) runConflict(ctx context.Context, j *Job) Result {
	item := j.Item
	localFull := p.localPath(item.Path)

	conflictRel := conflictCopyName(item.Path, p.now(), func(rel string) bool {
		_, err := os.Stat(p.localPath(rel))
		return err == nil
	})
	conflictFull := p.localPath(conflictRel)

	if err := fsabs.Rename(localFull, conflictFull); err != nil {
		return p.fail(j, StatusNormalError)
	}

	res, err := p.Remote.Get(ctx, p.remotePath(item.Path))
	if err != nil {
		// best effort: restore the local file under its original name so a
		// failed resolution doesn't leave the path empty.
		_ = fsabs.Rename(conflictFull, localFull)
		return p.fail(j, classifyRemoteErr(err))
	}
	defer res.Body.Close()

	if err := fsabs.AtomicWrite(localFull, res.Body, item.ModTime); err != nil {
		return p.fail(j, StatusNormalError)
	}

	if err := p.Journal.SetConflictRecord(&journal.ConflictRecord{
		OriginalPath: item.Path, ConflictPath: conflictRel,
		BaseFileID: item.FileID, BaseETag: res.ETag, BaseModTime: item.ModTime,
	}); err != nil {
		return p.fail(j, StatusNormalError)
	}

	rec := &journal.FileRecord{
		Path: item.Path, ModTime: item.ModTime, ETag: res.ETag, FileID: res.FileID,
		Type: journal.FileTypeFile,
	}
	if err := p.Journal.SetFileRecord(rec); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusConflict}
}

// runTypeChange treats a file-vs-directory disagreement the same way a
// CONFLICT is resolved: the local side is rotated aside under a conflicted
// name and the remote's notion of the path wins, since there's no
// three-way merge for "this is now a directory where a file used to be".
func (p *Propagator) runTypeChange(ctx context.Context, j *Job) Result {
	return p.runConflict(ctx, j)
}

func (p *Propagator) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
