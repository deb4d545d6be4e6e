// Package version reports build information for the player switch daemon.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X .../internal/version.Version=...".
var (
	Name      = "Stellar PlayerSwitch"
	Version   = "0.1.0"
	BuildTime = ""
	GitCommit = ""
)

// Info describes the running binary.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the current version information.
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// ShortCommit returns the first seven characters of the commit hash.
func (i Info) ShortCommit() string {
	return i.GitCommit[:min(7, len(i.GitCommit))]
}

// String returns a one-line banner, e.g. "Stellar PlayerSwitch v0.1.0 (abc1234)".
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.ShortCommit())
	}
	if i.BuildTime != "" {
		s += fmt.Sprintf(" built %s", i.BuildTime)
	}
	return s
}
