package fsabs

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"golang.org/x/crypto/sha3"
	"hash"
	"hash/adler32"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// checksumCacheKey identifies a file's content by the attributes that
// change whenever its content does, so a size/modtime match short-circuits
// rehashing without ever needing to read the file.
type checksumCacheKey struct {
	path    string
	size    int64
	modTime int64
}

// ChecksumCache memoizes ComputeChecksum results so a file that hasn't
// changed since the last run is never rehashed — the one local operation
// with no analog in a server that hands out content identity for free via
// an ETag.
type ChecksumCache struct {
	cache *lru.Cache[checksumCacheKey, string]
}

// NewChecksumCache creates a cache holding up to size entries.
func NewChecksumCache(size int) (*ChecksumCache, error) {
	c, err := lru.New[checksumCacheKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("create checksum cache: %w", err)
	}
	return &ChecksumCache{cache: c}, nil
}

// Checksum returns the algo-prefixed checksum of path ("ALGO:HEX"),
// reusing a cached value when path's size and modtime haven't changed.
func (c *ChecksumCache) Checksum(path, algo string, size, modTime int64) (string, error) {
	key := checksumCacheKey{path: path, size: size, modTime: modTime}
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	sum, err := ComputeChecksum(path, algo)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, sum)
	return sum, nil
}

// ComputeChecksum streams path through the named algorithm, returning
// "ALGO:HEX". Supported algorithms: SHA256, SHA3-256, SHA1, MD5, ADLER32.
func ComputeChecksum(path, algo string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for checksum: %w", path, err)
	}
	defer f.Close()

	var h hash.Hash
	switch algo {
	case "SHA256":
		h = sha256.New()
	case "SHA3-256":
		h = sha3.New256()
	case "SHA1":
		h = sha1.New()
	case "MD5":
		h = md5.New()
	case "ADLER32":
		h = adler32.New()
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", algo)
	}

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%s:%x", algo, h.Sum(nil)), nil
}

// IsWeak reports whether algo is a weak (non-cryptographic) checksum, used
// to decide whether a mtime+checksum match is strong enough to suppress a
// fake conflict outright or merely worth a closer look.
func IsWeak(algo string) bool {
	return algo == "ADLER32"
}
