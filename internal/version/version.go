// Package version carries the build metadata stamped into the flowwatcher
// binary via -ldflags.
package version

var (
	// Version is the semantic version, "dev" when built from a working tree.
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "unknown"
	// BuildDate is the UTC timestamp of the build.
	BuildDate = "unknown"
)
