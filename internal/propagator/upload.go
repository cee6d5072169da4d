package propagator

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
	"github.com/oc-sync/davsync/internal/remote"
)

// chunkThreshold is the smallest file size that goes through the chunked
// upload session instead of a single PUT.
const chunkThreshold = 16 * 1024 * 1024

func (p *Propagator) runUpload(ctx context.Context, j *Job) Result {
	item := j.Item
	fullPath := p.localPath(item.Path)

	info, err := os.Stat(fullPath)
	if err != nil {
		return p.fail(j, classifyLocalErr(err))
	}

	algo := "SHA1"
	if p.Caps != nil {
		algo = p.Caps.ChecksumAlgo()
	}
	checksum, err := p.Checksums.Checksum(fullPath, algo, info.Size(), info.ModTime().Unix())
	if err != nil {
		return p.fail(j, StatusNormalError)
	}

	var etag, fileID string
	if info.Size() >= chunkThreshold {
		etag, fileID, err = p.chunkedUpload(ctx, item.Path, fullPath, info, checksum)
	} else {
		etag, fileID, err = p.simpleUpload(ctx, item.Path, fullPath, info, checksum)
	}
	if err != nil {
		return p.fail(j, classifyRemoteErr(err))
	}

	rec := &journal.FileRecord{
		Path: item.Path, ModTime: info.ModTime().Unix(), Size: info.Size(),
		ETag: etag, FileID: fileID, Checksum: checksum, Type: journal.FileTypeFile,
	}
	if err := p.Journal.SetFileRecord(rec); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}

func (p *Propagator) simpleUpload(ctx context.Context, relPath, fullPath string, info os.FileInfo, checksum string) (etag, fileID string, err error) {
	f, err := fsabs.OpenRead(fullPath)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	res, err := p.Remote.Put(ctx, p.remotePath(relPath), f, info.Size(), info.ModTime().Unix(), checksum)
	if err != nil {
		return "", "", err
	}
	return res.ETag, res.FileID, nil
}

// chunkedUpload resumes or starts a chunked session, persisting its
// transfer id and progress in the journal so a crash mid-upload leaves a
// resumable session rather than a half-written object.
func (p *Propagator) chunkedUpload(ctx context.Context, relPath, fullPath string, info os.FileInfo, checksum string) (etag, fileID string, err error) {
	transferID := ""
	offset := int64(0)
	if existing, err := p.Journal.GetUploadInfo(relPath); err == nil && existing != nil && existing.Valid &&
		existing.Size == info.Size() && existing.ModTime == info.ModTime().Unix() {
		transferID = existing.TransferID
		offset = existing.ChunkOffset
	}

	chunkSize := p.Options.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10 * 1024 * 1024
	}

	upload := remote.NewChunkedUpload(p.Remote, p.remotePath(relPath), transferID, chunkSize)
	if err := upload.EnsureSession(ctx); err != nil {
		return "", "", err
	}

	if err := p.Journal.SetUploadInfo(&journal.UploadInfo{
		Path: relPath, TransferID: upload.TransferID(), ChunkOffset: offset,
		ChunkSize: chunkSize, ModTime: info.ModTime().Unix(), Size: info.Size(), Valid: true,
	}); err != nil {
		return "", "", err
	}

	f, err := fsabs.OpenRead(fullPath)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	for _, part := range remote.ChunkOffsets(info.Size(), chunkSize) {
		if part.Offset < offset {
			continue
		}
		seeker, ok := f.(io.Seeker)
		if !ok {
			return "", "", fmt.Errorf("reader does not support seeking to resume a chunked upload")
		}
		if _, err := seeker.Seek(part.Offset, io.SeekStart); err != nil {
			return "", "", err
		}
		if err := upload.PutChunk(ctx, part.Offset, f, part.Size); err != nil {
			return "", "", err
		}
		offset = part.Offset + part.Size
		_ = p.Journal.SetUploadInfo(&journal.UploadInfo{
			Path: relPath, TransferID: upload.TransferID(), ChunkOffset: offset,
			ChunkSize: chunkSize, ModTime: info.ModTime().Unix(), Size: info.Size(), Valid: true,
		})
	}

	if err := upload.Finalize(ctx, info.Size(), info.ModTime().Unix()); err != nil {
		return "", "", err
	}
	_ = p.Journal.ClearUploadInfo(relPath)

	res, err := p.Remote.Get(ctx, p.remotePath(relPath))
	if err != nil {
		// the upload itself succeeded; a failed re-fetch just means the
		// journal record will carry a stale etag until the next discovery
		// pass notices and re-downloads it.
		return "", "", nil
	}
	defer res.Body.Close()
	return res.ETag, res.FileID, nil
}

