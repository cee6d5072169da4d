package propagator

import (
	"context"
	"fmt"
	"io"

	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
)

func (p *Propagator) runDownload(ctx context.Context, j *Job) Result {
	item := j.Item
	res, err := p.Remote.Get(ctx, p.remotePath(item.Path))
	if err != nil {
		return p.fail(j, classifyRemoteErr(err))
	}
	defer res.Body.Close()

	fullPath := p.localPath(item.Path)
	tee := &countingReader{r: res.Body}

	algo := "SHA1"
	if p.Caps != nil {
		algo = p.Caps.ChecksumAlgo()
	}

	// Verify against the temp file before it is renamed into place: a
	// checksum mismatch must discard the downloaded bytes, not commit them
	// at the real path and merely report the problem after the fact.
	var checksum string
	verify := func(tmpPath string) error {
		sum, err := fsabs.ComputeChecksum(tmpPath, algo)
		if err != nil {
			return err
		}
		checksum = sum
		if serverSum := firstNonEmpty(res.OCChecksum, res.ContentMD5); serverSum != "" && !checksumsAgree(sum, serverSum) {
			return fmt.Errorf("downloaded content for %s failed checksum verification", item.Path)
		}
		return nil
	}
	if err := fsabs.AtomicWriteVerified(fullPath, tee, item.ModTime, verify); err != nil {
		return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusNormalError, Err: err}
	}

	rec := &journal.FileRecord{
		Path: item.Path, ModTime: item.ModTime, Size: tee.n,
		ETag: res.ETag, FileID: res.FileID, Checksum: checksum, Type: journal.FileTypeFile,
	}
	if err := p.Journal.SetFileRecord(rec); err != nil {
		return p.fail(j, StatusNormalError)
	}
	return Result{JobID: j.ID, Path: item.Path, Kind: j.Kind, Status: StatusSuccess}
}

// checksumsAgree compares a locally computed "ALGO:HEX" checksum against a
// server-supplied checksum that may arrive as a bare hash (e.g. Content-MD5,
// base64 or hex) or in the same "ALGO:HEX" form (OC-Checksum).
func checksumsAgree(local, server string) bool {
	_, localHex, ok := splitTag(local)
	if !ok {
		return false
	}
	if _, serverHex, ok := splitTag(server); ok {
		return localHex == serverHex
	}
	return localHex == server
}

func splitTag(s string) (algo, hex string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
