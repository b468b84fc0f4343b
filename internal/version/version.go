// Package version carries build metadata stamped in via ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/depsync/internal/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the metadata for the version command and the startup log line.
func String() string {
	commit := GitCommit
	if commit == "unknown" {
		commit = vcsRevision()
	}
	return fmt.Sprintf("depsync %s (commit %s, built %s, %s)", Version, commit, BuildTime, runtime.Version())
}

// vcsRevision falls back to the revision the Go toolchain embeds in module builds.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return "unknown"
}
