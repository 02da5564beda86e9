// Package buildinfo provides build-time properties injected via ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Properties holds build-time properties injected via ldflags.
type Properties struct {
	Version   string `json:"version" yaml:"version"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Package-level variables for ldflags injection (unexported).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the current build properties. A commit recorded by the Go toolchain is used
// when none was injected.
func Get() Properties {
	p := Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
	if p.GitCommit == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					p.GitCommit = s.Value
				}
			}
		}
	}
	return p
}

// String formats the properties for a version line.
func (p Properties) String() string {
	return fmt.Sprintf("pipeflow %s (commit %s, built %s, %s)", p.Version, p.GitCommit, p.BuildTime, p.GoVersion)
}
