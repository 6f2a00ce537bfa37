// Package version provides build version information for pushover-dc.
package version

// Version is the semantic version of the build. Overridden at link time
// via -ldflags for release builds.
var Version = "development"

// Commit is the git commit the binary was built from.
var Commit = "unknown"

// String returns the full version string for display.
func String() string {
	if Commit == "unknown" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
