package propagator

import (
	"context"
	"errors"
	"os"

	"github.com/oc-sync/davsync/internal/fsabs"
)

func (p *Propagator) runDeleteRemote(ctx context.Context, j *Job) Result {
	item := j.Item
	if err := p.Remote.Delete(ctx, p.remotePath(item.Path)); err != nil {
		return p.fail(j, classifyRemoteErr(err))
	}
	if err := p.Journal.DeleteSubtree(item.Path); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}

func (p *Propagator) runDeleteLocal(_ context.Context, j *Job) Result {
	item := j.Item
	err := fsabs.Remove(p.localPath(item.Path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return p.fail(j, StatusNormalError)
	}
	if err := p.Journal.DeleteSubtree(item.Path); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}
