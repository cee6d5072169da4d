package fsabs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// PlaceholderProvider represents remote files that have not been hydrated
// onto local disk. Adapted from the teacher's dot-suffix marker scheme
// (sync_marker.go), but applied to dehydration instead of conflicts: a
// placeholder is a sentinel file carrying the remote size/modtime, not a
// renamed copy of real content.
type PlaceholderProvider interface {
	// IsPlaceholder reports whether localPath is a placeholder for path.
	IsPlaceholder(localPath string) bool
	// Create writes a placeholder for a remote file of the given size and
	// modtime at localPath.
	Create(localPath string, size, modTime int64) error
	// Stat reads the size/modtime a placeholder records, for discovery to
	// treat it as present-with-content without hydrating it.
	Stat(localPath string) (size int64, modTime int64, err error)
	// Remove deletes the placeholder at localPath.
	Remove(localPath string) error
}

// OffProvider implements PlaceholderProvider as a no-op: every file is
// fully materialized, matching Options.VFSMode == VFSOff.
type OffProvider struct{}

func (OffProvider) IsPlaceholder(string) bool { return false }

func (OffProvider) Create(string, int64, int64) error {
	return fmt.Errorf("placeholders disabled")
}

func (OffProvider) Stat(string) (int64, int64, error) {
	return 0, 0, fmt.Errorf("placeholders disabled")
}

func (OffProvider) Remove(string) error { return nil }

const placeholderSuffix = ".lnk"

type placeholderPayload struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"modtime"`
}

// SuffixProvider represents a dehydrated remote file <name> as a sentinel
// file named <name>.lnk holding its size/modtime as JSON. This package only
// manages the sentinel's lifecycle; nothing in the module hydrates a
// sentinel when it is read.
type SuffixProvider struct{}

func (SuffixProvider) IsPlaceholder(localPath string) bool {
	return strings.HasSuffix(localPath, placeholderSuffix)
}

func (SuffixProvider) Create(localPath string, size, modTime int64) error {
	payload, err := json.Marshal(placeholderPayload{Size: size, ModTime: modTime})
	if err != nil {
		return fmt.Errorf("marshal placeholder payload: %w", err)
	}
	sentinel := localPath + placeholderSuffix
	if err := os.WriteFile(sentinel, payload, 0o644); err != nil {
		return fmt.Errorf("write placeholder %s: %w", sentinel, err)
	}
	return nil
}

func (SuffixProvider) Stat(localPath string) (int64, int64, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, 0, fmt.Errorf("read placeholder %s: %w", localPath, err)
	}
	var payload placeholderPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, 0, fmt.Errorf("decode placeholder %s: %w", localPath, err)
	}
	return payload.Size, payload.ModTime, nil
}

func (SuffixProvider) Remove(localPath string) error {
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove placeholder %s: %w", localPath, err)
	}
	return nil
}

// RealPath strips the placeholder suffix, returning the path the hydrated
// file will occupy once materialized.
func RealPath(placeholderPath string) string {
	return strings.TrimSuffix(placeholderPath, placeholderSuffix)
}
