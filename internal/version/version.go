// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Info returns version information.
func Info() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the one-line form printed by "labelscan version".
func (b BuildInfo) String() string {
	return fmt.Sprintf("labelscan %s (commit %s, built %s, %s %s)",
		b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}
