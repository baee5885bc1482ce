// Package version reports the orca release.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is set at build time with -ldflags "-X .../version.Commit=<sha>".
var Commit = ""

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version line printed by "orca version".
func String() string {
	s := "orca " + Get()
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return fmt.Sprintf("%s %s/%s", s, runtime.GOOS, runtime.GOARCH)
}
