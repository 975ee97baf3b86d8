// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import (
	"fmt"
	"runtime/debug"
)

// Set by -ldflags at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// ResolvedVersion returns Version, or the module version recorded by
// `go install` when the binary was built without ldflags.
func ResolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// BuildSummary is the multi-line block printed by `dragon version`.
func BuildSummary() string {
	return fmt.Sprintf("Version: %s\nSha: %s\nBuilt at: %s\n", ResolvedVersion(), Sha, Buildtime)
}
