// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// Platform identifies the file variants that apply to a machine.
type Platform struct {
	// Tag is the short platform id: lnx, mac, win or bsd.
	Tag string
	// Width is the pointer width in bits.
	Width int
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return Platform{Tag: platformTag(runtime.GOOS), Width: strconv.IntSize}
}

func platformTag(goos string) string {
	switch goos {
	case "linux":
		return "lnx"
	case "darwin":
		return "mac"
	case "windows":
		return "win"
	case "freebsd", "openbsd", "netbsd", "dragonfly":
		return "bsd"
	default:
		return goos
	}
}

func (p Platform) String() string {
	return fmt.Sprintf("%s%d", p.Tag, p.Width)
}

// CaseInsensitivePaths reports whether the platform's default
// filesystem compares paths case-insensitively.
func (p Platform) CaseInsensitivePaths() bool {
	return p.Tag == "win" || p.Tag == "mac"
}

var platformTagPattern = regexp.MustCompile(`^(lnx|mac|win|bsd)(32|64)?$`)

// ParsePlatform parses a platform id such as "lnx64" or "win". A
// missing width means the running process's pointer width.
func ParsePlatform(text string) (Platform, error) {
	match := platformTagPattern.FindStringSubmatch(text)
	if match == nil {
		return Platform{}, fmt.Errorf("invalid platform %q: expected lnx, mac, win or bsd, optionally followed by 32 or 64", text)
	}
	platform := Platform{Tag: match[1], Width: strconv.IntSize}
	if match[2] != "" {
		platform.Width, _ = strconv.Atoi(match[2])
	}
	return platform, nil
}

// settingsExtensions are the file extensions LoadFiles understands.
var settingsExtensions = map[string]bool{
	".yaml":  true,
	".yml":   true,
	".json":  true,
	".jsonc": true,
}

// IsSettingsFile reports whether name has a settings file extension.
func IsSettingsFile(name string) bool {
	return settingsExtensions[strings.ToLower(filepath.Ext(name))]
}

// fileVariant splits a settings file name into its stem and platform
// tag. Names without a recognized tag have an empty tag.
type fileVariant struct {
	name  string
	stem  string
	tag   string
	width int
}

func parseVariant(name string) fileVariant {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	variant := fileVariant{name: name, stem: base}
	dot := strings.LastIndex(base, ".")
	if dot < 0 {
		return variant
	}
	match := platformTagPattern.FindStringSubmatch(base[dot+1:])
	if match == nil {
		return variant
	}
	variant.stem = base[:dot]
	variant.tag = match[1]
	if match[2] != "" {
		variant.width, _ = strconv.Atoi(match[2])
	}
	return variant
}

// specificity orders variants of the same stem: untagged, then
// platform-tagged, then platform-and-width-tagged.
func (v fileVariant) specificity() int {
	switch {
	case v.tag == "":
		return 0
	case v.width == 0:
		return 1
	default:
		return 2
	}
}

// Matches reports whether the file named name applies to the platform.
// Untagged settings files apply everywhere.
func (p Platform) Matches(name string) bool {
	if !IsSettingsFile(name) {
		return false
	}
	variant := parseVariant(name)
	if variant.tag == "" {
		return true
	}
	return variant.tag == p.Tag && (variant.width == 0 || variant.width == p.Width)
}

// FileMatchesPlatform reports whether name applies to the running
// platform.
func FileMatchesPlatform(name string) bool {
	return CurrentPlatform().Matches(name)
}

// SortFiles orders file names for loading: by stem, and for one stem the
// more specific platform variants after the generic file, so that
// "launcher.lnx64.yaml" overrides "launcher.lnx.yaml", which overrides
// "launcher.yaml".
func SortFiles(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		left := parseVariant(filepath.Base(names[i]))
		right := parseVariant(filepath.Base(names[j]))
		if left.stem != right.stem {
			return left.stem < right.stem
		}
		if left.specificity() != right.specificity() {
			return left.specificity() < right.specificity()
		}
		return names[i] < names[j]
	})
}

// ListDirectory returns the settings files in dir that apply to
// platform, in load order. Hidden files and subdirectories are skipped.
// A missing directory yields no files.
func ListDirectory(dir string, platform Platform) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing settings directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if platform.Matches(name) {
			names = append(names, name)
		}
	}
	SortFiles(names)

	paths := make([]string, len(names))
	for index, name := range names {
		paths[index] = filepath.Join(dir, name)
	}
	return paths, nil
}
