package fsabs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one enumerated filesystem entry, relative to a sync root.
type Entry struct {
	Path    string // slash-separated, relative to root
	IsDir   bool
	Size    int64
	ModTime int64 // unix seconds
	Hidden  bool
}

// Enumerate walks root depth-first, yielding every entry not excluded by
// ignore and, when ignoreHidden is set, not dot-prefixed. Directories are
// yielded before their children.
func Enumerate(root string, ignore *IgnoreList, ignoreHidden bool) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		hidden := isHidden(d.Name())
		if ignoreHidden && hidden {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore != nil && ignore.ShouldIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		entries = append(entries, Entry{
			Path:    rel,
			IsDir:   d.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
			Hidden:  hidden,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
