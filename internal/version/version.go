// Package version reports build metadata injected with -ldflags.
//
//	go build -ldflags "-X github.com/conneroisu/docsite/internal/version.Version=v1.2.0 \
//	  -X github.com/conneroisu/docsite/internal/version.Commit=$(git rev-parse HEAD) \
//	  -X github.com/conneroisu/docsite/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	Commit    string    `json:"commit,omitempty" yaml:"commit,omitempty"`
	BuildTime time.Time `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Modified  bool      `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// Get collects build metadata, falling back to the VCS stamp the Go
// toolchain embeds when ldflags were not set.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, Date); err == nil {
		info.BuildTime = t
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime.IsZero() {
					if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
						info.BuildTime = t
					}
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

// Short returns the version with an abbreviated commit, e.g. "v1.2.0 (1a2b3c4)".
func (i Info) Short() string {
	if len(i.Commit) < 7 {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, i.Commit[:7])
}

// String renders every known field, one per line.
func (i Info) String() string {
	lines := []string{"Version:  " + i.Version}
	if i.Commit != "" {
		commit := i.Commit
		if i.Modified {
			commit += " (modified)"
		}
		lines = append(lines, "Commit:   "+commit)
	}
	if !i.BuildTime.IsZero() {
		lines = append(lines, "Built:    "+i.BuildTime.UTC().Format(time.RFC3339))
	}
	lines = append(lines,
		"Go:       "+i.GoVersion,
		"Platform: "+i.Platform,
	)
	return strings.Join(lines, "\n")
}

// IsRelease reports whether the binary carries a real version.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !strings.HasPrefix(i.Version, "dev-")
}
