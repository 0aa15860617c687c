package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time with -ldflags "-X nozomi-tproxy/internal/version.Version=...".
var (
	Name      = "nozomi-tproxy"
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Get returns the build information. Values not injected through ldflags
// are taken from the embedded module build info when available.
func Get() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}

	return info
}

func String() string {
	i := Get()
	return fmt.Sprintf("%s version %s (commit: %s, built: %s, go: %s, %s/%s)",
		i.Name, i.Version, i.Commit, i.BuildTime, i.GoVersion, i.OS, i.Arch)
}

func Short() string {
	return fmt.Sprintf("%s %s", Name, Get().Version)
}
