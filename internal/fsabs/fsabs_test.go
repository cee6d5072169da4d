package fsabs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnumerate_SkipsIgnoredAndHidden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.log"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("y"), 0o644))

	ignore := NewIgnoreList(root)
	ignore.Load()

	entries, err := Enumerate(root, ignore, true)
	require.NoError(t, err)

	paths := map[string]bool{}
	for _, e := range entries {
		paths[e.Path] = true
	}
	require.True(t, paths["keep.txt"])
	require.True(t, paths["sub"])
	require.True(t, paths["sub/nested.txt"])
	require.False(t, paths[".hidden"])
	require.False(t, paths["a.log"])
}

func TestComputeChecksum_DeterministicPerAlgorithm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	sha256sum, err := ComputeChecksum(path, "SHA256")
	require.NoError(t, err)
	require.Contains(t, sha256sum, "SHA256:")

	again, err := ComputeChecksum(path, "SHA256")
	require.NoError(t, err)
	require.Equal(t, sha256sum, again)

	adler, err := ComputeChecksum(path, "ADLER32")
	require.NoError(t, err)
	require.True(t, IsWeak("ADLER32"))
	require.False(t, IsWeak("SHA256"))
	require.NotEqual(t, sha256sum, adler)
}

func TestChecksumCache_AvoidsRehashOnUnchangedStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	cache, err := NewChecksumCache(8)
	require.NoError(t, err)

	sum1, err := cache.Checksum(path, "SHA1", 7, 1000)
	require.NoError(t, err)

	// Overwrite on disk without changing the cache key; a cached lookup
	// must return the stale cached value rather than reread the file.
	require.NoError(t, os.WriteFile(path, []byte("different content!"), 0o644))
	sum2, err := cache.Checksum(path, "SHA1", 7, 1000)
	require.NoError(t, err)
	require.Equal(t, sum1, sum2)

	sum3, err := cache.Checksum(path, "SHA1", 19, 1000)
	require.NoError(t, err)
	require.NotEqual(t, sum1, sum3)
}

func TestAtomicWrite_NeverLeavesTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "out.bin")

	require.NoError(t, AtomicWrite(target, bytes.NewReader([]byte("payload")), 12345))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSuffixProvider_CreateStatRemove(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "remote-only.bin")

	var p SuffixProvider
	require.NoError(t, p.Create(target, 4096, 1700000000))

	sentinel := target + placeholderSuffix
	require.True(t, p.IsPlaceholder(sentinel))
	require.Equal(t, target, RealPath(sentinel))

	size, modTime, err := p.Stat(sentinel)
	require.NoError(t, err)
	require.Equal(t, int64(4096), size)
	require.Equal(t, int64(1700000000), modTime)

	require.NoError(t, p.Remove(sentinel))
	_, err = os.Stat(sentinel)
	require.True(t, os.IsNotExist(err))
}

func TestOffProvider_NeverClaimsAPlaceholder(t *testing.T) {
	var p OffProvider
	require.False(t, p.IsPlaceholder("anything"))
	require.Error(t, p.Create("x", 1, 1))
}

func TestRename_CreatesMissingParent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	dst := filepath.Join(dir, "new", "nested", "dst.txt")
	require.NoError(t, Rename(src, dst))

	_, err := os.Stat(dst)
	require.NoError(t, err)
}
