// Package buildinfo exposes version metadata set at link time with
// -ldflags "-X stationplan/internal/buildinfo.Version=...".
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info merges the link-time values with what the Go toolchain embedded.
// Commit falls back to the VCS revision when it was not set explicitly.
func Info() map[string]string {
	out := map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out["commit"] == "" {
				out["commit"] = s.Value
			}
		case "vcs.time":
			if out["builtAt"] == "" {
				out["builtAt"] = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				out["dirty"] = "true"
			}
		}
	}
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		out["version"] = bi.Main.Version
	}
	return out
}
