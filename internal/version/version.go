// Package version holds build-time identification, overridden via
// -ldflags "-X .../internal/version.Version=... -X .../Revision=...".
package version

import "fmt"

var (
	// AppName is the display name used in CLI headers.
	AppName = "davsync"
	// Version is the released semantic version, or a -dev suffix for
	// local builds.
	Version = "0.1.0-dev"
	// Revision is the VCS commit this binary was built from.
	Revision = "HEAD"
	// BuildDate is when this binary was built, set by the build system.
	BuildDate = "unknown"
)

// Detailed renders "<version> (<revision>; built <date>)".
func Detailed() string {
	return fmt.Sprintf("%s (%s; built %s)", Version, Revision, BuildDate)
}
