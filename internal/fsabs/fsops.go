package fsabs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oc-sync/davsync/internal/pathutil"
)

// Rename moves oldPath to newPath, creating newPath's parent directory if
// needed, matching how a RENAME job must be able to land in a directory
// that a sibling MKDIR job created earlier in the same run.
func Rename(oldPath, newPath string) error {
	if err := pathutil.EnsureParent(newPath); err != nil {
		return fmt.Errorf("ensure parent for rename target %s: %w", newPath, err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

// Remove deletes path, tolerating it already being gone.
func Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// MkDir creates path and any missing parents.
func MkDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SetModTime sets path's modification time to the given unix timestamp,
// preserving the access time.
func SetModTime(path string, modTime int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s before setting modtime: %w", path, err)
	}
	t := time.Unix(modTime, 0)
	if err := os.Chtimes(path, info.ModTime(), t); err != nil {
		return fmt.Errorf("set modtime %s: %w", path, err)
	}
	return nil
}

// SetPermissions applies perm to path.
func SetPermissions(path string, perm os.FileMode) error {
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

// OpenRead opens path for streaming upload.
func OpenRead(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s for read: %w", path, err)
	}
	return f, nil
}

// OpenWrite creates (or truncates) path for streaming download, creating
// its parent directory first.
func OpenWrite(path string) (io.WriteCloser, error) {
	if err := pathutil.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("ensure parent for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s for write: %w", path, err)
	}
	return f, nil
}

// AtomicWrite writes content to path via a temp file in the same
// directory followed by a rename, so a download or chunk-finalize crash
// never leaves a half-written file at the target path.
func AtomicWrite(path string, content io.Reader, modTime int64) error {
	return AtomicWriteVerified(path, content, modTime, nil)
}

// AtomicWriteVerified behaves like AtomicWrite, except that when verify is
// non-nil it is called with the temp file's path before the rename into
// place. If verify returns an error, the temp file is discarded, the
// target path is left untouched, and that error is returned — a failed
// download's content is never committed at its real path, only ever at a
// temp name the caller never learns.
func AtomicWriteVerified(path string, content io.Reader, modTime int64, verify func(tmpPath string) error) error {
	if err := pathutil.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent for %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".davsync-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file %s: %w", tmpPath, err)
	}

	if modTime != 0 {
		t := time.Unix(modTime, 0)
		if err := os.Chtimes(tmpPath, t, t); err != nil {
			return fmt.Errorf("set modtime on temp file %s: %w", tmpPath, err)
		}
	}

	if verify != nil {
		if err := verify(tmpPath); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file into place at %s: %w", path, err)
	}
	return nil
}
