package remote

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
)

// ChunkedUpload drives one resumable upload session against the chunked
// upload namespace `/uploads/<transfer-id>/<offset>` (spec §6 "Wire
// details"). Unlike the teacher's resumableUploader, which persists its
// session as a JSON sidecar file keyed by sha1(key|path), session state
// here round-trips through internal/journal's upload_info table so it
// survives a journal-backed restart the same way every other piece of
// sync state does.
type ChunkedUpload struct {
	client     *Client
	transferID string
	destPath   string
	chunkSize  int64
}

// NewChunkedUpload starts (or resumes, given a prior transferID) a
// chunked upload session targeting destPath.
func NewChunkedUpload(client *Client, destPath string, transferID string, chunkSize int64) *ChunkedUpload {
	if transferID == "" {
		transferID = uuid.NewString()
	}
	return &ChunkedUpload{
		client:     client,
		transferID: transferID,
		destPath:   destPath,
		chunkSize:  chunkSize,
	}
}

// TransferID returns the session's transfer id, to be persisted via
// journal.UploadInfo so a crash mid-upload can resume from the next
// unconfirmed offset instead of restarting from zero.
func (u *ChunkedUpload) TransferID() string {
	return u.transferID
}

func (u *ChunkedUpload) uploadsDir() string {
	return "uploads/" + u.transferID
}

// EnsureSession creates the server-side upload collection if it doesn't
// already exist (idempotent — MkCol tolerates 405 Method Not Allowed).
func (u *ChunkedUpload) EnsureSession(ctx context.Context) error {
	return u.client.MkCol(ctx, u.uploadsDir())
}

// PutChunk uploads one chunk at the given byte offset.
func (u *ChunkedUpload) PutChunk(ctx context.Context, offset int64, data io.Reader, size int64) error {
	chunkPath := fmt.Sprintf("%s/%016d", u.uploadsDir(), offset)
	_, err := u.client.Put(ctx, chunkPath, data, size, 0, "")
	if err != nil {
		return fmt.Errorf("put chunk at offset %d: %w", offset, err)
	}
	return nil
}

// Finalize moves the assembled `.file` marker to destPath, completing the
// upload. totalLength is the full file size, modTime the local mtime to
// apply server-side.
func (u *ChunkedUpload) Finalize(ctx context.Context, totalLength, modTime int64) error {
	src := u.uploadsDir() + "/.file"
	extra := map[string]string{
		"OC-Total-Length": strconv.FormatInt(totalLength, 10),
		"X-OC-Mtime":      strconv.FormatInt(modTime, 10),
	}
	if err := u.client.Move(ctx, src, u.destPath, true, extra); err != nil {
		return fmt.Errorf("finalize chunked upload to %s: %w", u.destPath, err)
	}
	return nil
}

// Abort deletes the in-progress upload collection, discarding any chunks
// uploaded so far.
func (u *ChunkedUpload) Abort(ctx context.Context) error {
	return u.client.Delete(ctx, u.uploadsDir())
}

// ChunkOffsets splits a file of totalSize into chunkSize-sized pieces,
// returning each chunk's starting offset and length.
func ChunkOffsets(totalSize, chunkSize int64) []struct{ Offset, Size int64 } {
	if chunkSize <= 0 {
		chunkSize = totalSize
	}
	var chunks []struct{ Offset, Size int64 }
	for offset := int64(0); offset < totalSize; offset += chunkSize {
		size := chunkSize
		if remaining := totalSize - offset; remaining < size {
			size = remaining
		}
		chunks = append(chunks, struct{ Offset, Size int64 }{Offset: offset, Size: size})
	}
	return chunks
}
