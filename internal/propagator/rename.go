package propagator

import (
	"context"
	"os"

	"github.com/oc-sync/davsync/internal/discovery"
	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
)

// runRename performs a RENAME item. Move detection only ever builds a
// RENAME out of a REMOVE/NEW pair after one side has already moved on its
// own — a DirDown rename (move.go Pass A) means the remote object is
// already at its new path and only the local fsabs.Rename is pending; a
// DirUp rename (Pass B) means the local file is already at its new path
// and only the remote MOVE is pending. Re-issuing the side that already
// moved would fail (the old name no longer exists there), so only the
// pending side runs before the journal path-key update. The local file's
// mtime is left as it was, even when the server reports a different one,
// and the journal records that local mtime for the new path.
func (p *Propagator) runRename(ctx context.Context, j *Job) Result {
	item := j.Item
	modTime := item.ModTime

	switch item.Direction {
	case discovery.DirDown:
		oldLocal := p.localPath(item.RenameFrom)
		newLocal := p.localPath(item.Path)
		if err := fsabs.Rename(oldLocal, newLocal); err != nil {
			return p.fail(j, StatusNormalError)
		}
		if info, err := os.Stat(newLocal); err == nil {
			modTime = info.ModTime().Unix()
		}
	default:
		if err := p.Remote.Move(ctx, p.remotePath(item.RenameFrom), p.remotePath(item.Path), false, nil); err != nil {
			return p.fail(j, classifyRemoteErr(err))
		}
	}

	if err := p.Journal.DeleteFileRecord(item.RenameFrom); err != nil {
		return p.fail(j, StatusNormalError)
	}
	rec := &journal.FileRecord{
		Path: item.Path, ModTime: modTime, Size: item.Size,
		ETag: item.ETag, FileID: item.FileID, Checksum: item.Checksum,
		Type: fileType(item.IsDir),
	}
	if err := p.Journal.SetFileRecord(rec); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}

func fileType(isDir bool) journal.FileType {
	if isDir {
		return journal.FileTypeDir
	}
	return journal.FileTypeFile
}
