package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/docweave/internal/version.Version=v0.3.0".
var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Commit returns GitCommit, falling back to the VCS revision embedded by the
// go toolchain when ldflags did not set it.
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return GitCommit
}

// String is the one-line version banner.
func String() string {
	return fmt.Sprintf("docweave %s (commit %s, built %s, %s)", Version, Commit(), BuildTime, runtime.Version())
}
