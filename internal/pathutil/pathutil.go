// Package pathutil provides small filesystem path helpers shared by the
// journal, filesystem abstraction, and CLI.
package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Resolve expands a leading "~" and returns a cleaned absolute path.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", home, 1)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// EnsureParent creates the parent directory of path if it doesn't exist.
func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}

// EnsureDir creates path (and any missing ancestors) if it doesn't exist.
func EnsureDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FileExists reports whether path exists and is a regular (non-directory) file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ToSlash normalizes a filesystem path to the forward-slash form used for
// journal keys and remote paths.
func ToSlash(path string) string {
	return filepath.ToSlash(path)
}
