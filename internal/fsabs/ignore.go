package fsabs

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/oc-sync/davsync/internal/pathutil"
)

// defaultIgnoreLines mirror the always-excluded OS/editor/VCS artifacts no
// sync should ever upload, regardless of a user's .davsyncignore.
var defaultIgnoreLines = []string{
	".davsyncignore",
	"**/*.rejected",
	"**/* (conflicted copy*",
	".git",
	"*.tmp",
	"*.log",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"~$*",
	".~lock.*",
}

// IgnoreList decides whether a relative path should be excluded from
// discovery entirely (never uploaded, never downloaded, never deleted on
// the other side's behalf).
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

// NewIgnoreList creates an IgnoreList rooted at baseDir. Call Load before
// use.
func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

// Load compiles the default ignore lines plus the user's .davsyncignore
// file, if present, at the root of the synced tree.
func (l *IgnoreList) Load() {
	ignorePath := filepath.Join(l.baseDir, ".davsyncignore")
	lines := append([]string{}, defaultIgnoreLines...)

	if pathutil.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					lines = append(lines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether relPath (slash-separated, relative to the
// synced root) must be excluded from discovery.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	if l.ignore == nil {
		return false
	}
	return l.ignore.MatchesPath(relPath)
}
