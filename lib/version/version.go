// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"

	"github.com/blang/semver/v4"
)

// Set at build time with -ldflags -X.
var (
	// Version is the semantic version of the launcher. Launched
	// processes see it as the launcher_version of their process record.
	Version = "0.1.0-dev"

	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
)

// Build identifies one launcher build.
type Build struct {
	Version string
	Commit  string
	Dirty   bool
	Time    string
}

// Current returns the build of the running binary.
func Current() Build {
	return Build{
		Version: Version,
		Commit:  GitCommit,
		Dirty:   GitDirty == "true",
		Time:    BuildTime,
	}
}

// String formats the build as "version (commit[-dirty], time)".
func (b Build) String() string {
	commit := b.Commit
	if b.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, commit, b.Time)
}

// Info returns the current build as a single line.
func Info() string {
	return Current().String()
}

// Full returns the current build with the Go toolchain and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Compatible reports whether launch state written by a launcher of
// version recorded can be read by this build. Releases agree on the
// major version; 0.x releases must also agree on the minor version.
func Compatible(recorded string) (bool, error) {
	current, err := semver.ParseTolerant(Version)
	if err != nil {
		return false, fmt.Errorf("launcher version %q: %w", Version, err)
	}
	other, err := semver.ParseTolerant(recorded)
	if err != nil {
		return false, fmt.Errorf("recorded launcher version %q: %w", recorded, err)
	}
	if current.Major != other.Major {
		return false, nil
	}
	if current.Major == 0 && current.Minor != other.Minor {
		return false, nil
	}
	return true, nil
}
