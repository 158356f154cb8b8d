package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata on one line, e.g. for `fcpr version`.
func String() string {
	return fmt.Sprintf("fcpr %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}

// Info returns the build metadata as a map suitable for JSON encoding.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_sha":    GitSHA,
		"build_time": BuildTime,
	}
}
