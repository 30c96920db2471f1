// Package version reports build metadata stamped in with -ldflags, e.g.
//
//	-X github.com/soyeahso/meetbot/internal/version.Version=1.0.0
//
// Commit and Date fall back to the VCS stamp Go embeds in module builds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(bi.Settings)
	}
}

// applyBuildSettings fills Commit and Date from vcs settings unless ldflags
// already set them.
func applyBuildSettings(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "unknown" && s.Value != "":
			Commit = s.Value
		case s.Key == "vcs.time" && Date == "unknown" && s.Value != "":
			Date = s.Value
		}
	}
}

// Info is the one-line summary printed by `meetbot version`.
func Info() string {
	return fmt.Sprintf("meetbot %s (commit %s, built %s, %s/%s)",
		Version, ShortCommit(), Date, runtime.GOOS, runtime.GOARCH)
}

// ShortCommit is Commit cut to seven characters.
func ShortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

// UserAgent identifies meetbot to model and telephony APIs.
func UserAgent() string {
	return "meetbot/" + Version
}
