package propagator

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const conflictTimeFormat = "2006-01-02 150405"

// conflictCopyName builds the side-by-side name a losing local copy is
// rotated to when a CONFLICT is resolved: "name (conflicted copy
// 2006-01-02 150405).ext". Collisions (two conflicts landing in the same
// second) are disambiguated with a numeric suffix.
func conflictCopyName(path string, now time.Time, exists func(string) bool) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	stamp := now.Format(conflictTimeFormat)
	candidate := fmt.Sprintf("%s (conflicted copy %s)%s", stem, stamp, ext)
	full := joinDir(dir, candidate)
	for n := 2; exists(full); n++ {
		candidate = fmt.Sprintf("%s (conflicted copy %s) %d%s", stem, stamp, n, ext)
		full = joinDir(dir, candidate)
	}
	return full
}

func joinDir(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}

// isConflictCopyName reports whether leaf looks like a name conflictCopyName
// would have produced. Discovery does not call it; a conflicted copy is
// walked like any other local file.
func isConflictCopyName(leaf string) bool {
	return strings.Contains(leaf, "(conflicted copy ")
}
