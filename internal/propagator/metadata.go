package propagator

import (
	"context"

	"github.com/oc-sync/davsync/internal/discovery"
	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
)

func (p *Propagator) runMkdirRemote(ctx context.Context, j *Job) Result {
	item := j.Item
	if err := p.Remote.MkCol(ctx, p.remotePath(item.Path)); err != nil {
		return p.fail(j, classifyRemoteErr(err))
	}
	rec := &journal.FileRecord{Path: item.Path, ETag: item.ETag, FileID: item.FileID, Type: journal.FileTypeDir}
	if err := p.Journal.SetFileRecord(rec); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}

func (p *Propagator) runMkdirLocal(_ context.Context, j *Job) Result {
	item := j.Item
	if err := fsabs.MkDir(p.localPath(item.Path)); err != nil {
		return p.fail(j, StatusNormalError)
	}
	rec := &journal.FileRecord{Path: item.Path, ETag: item.ETag, FileID: item.FileID, Type: journal.FileTypeDir}
	if err := p.Journal.SetFileRecord(rec); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}

// runUpdateMetadata applies a permission/mtime-only change (no content
// moved): local-side changes are written with os-level calls, remote-side
// permission changes have no WebDAV verb to carry them so only the
// journal's record of the remote state is refreshed, ready to be compared
// again next run.
func (p *Propagator) runUpdateMetadata(_ context.Context, j *Job) Result {
	item := j.Item
	if item.Direction != discovery.DirDown {
		if item.ModTime != 0 {
			_ = fsabs.SetModTime(p.localPath(item.Path), item.ModTime)
		}
	}
	rec, err := p.Journal.GetFileRecord(item.Path)
	if err != nil {
		return p.fail(j, StatusNormalError)
	}
	if rec == nil {
		rec = &journal.FileRecord{Path: item.Path, Type: fileType(item.IsDir)}
	}
	rec.ETag = item.ETag
	rec.ModTime = item.ModTime
	rec.Size = item.Size
	if err := p.Journal.SetFileRecord(rec); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}
