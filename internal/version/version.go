// Package version reports the build of the running binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/wccp/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/wccp/internal/version.Commit=abc123" ./cmd/wccp
//
// Otherwise they come from the module and VCS build info, or "dev" with a
// timestamp.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version != "" && Commit != "" {
		return
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		v, c := fromBuildInfo(info)
		if Version == "" {
			Version = v
		}
		if Commit == "" {
			Commit = c
		}
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo derives a version and short commit from build info. A
// tagged `go install` carries the module version; a build from a checkout
// only has the VCS revision and time.
func fromBuildInfo(info *debug.BuildInfo) (version, commit string) {
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; rev != "" {
		commit = rev[:min(len(rev), 7)]
		if settings["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}

	if version == "" {
		if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}
	return version, commit
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Info is the version as reported by the relay.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the running binary's version info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
