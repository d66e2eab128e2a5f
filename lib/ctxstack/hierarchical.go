// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ctxstack

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/filehash"
	"github.com/bureau-foundation/stagehand/lib/settings"
)

// DefaultConfigDirectory is the directory name searched for in every
// ancestor of a hierarchical context root.
const DefaultConfigDirectory = "etc"

// HierarchicalOptions configures [NewHierarchical].
type HierarchicalOptions struct {
	// DirectoryName is the configuration directory looked for in each
	// ancestor. Empty means DefaultConfigDirectory.
	DirectoryName string

	// Platform selects the platform-tagged files to load. The zero
	// value means the running platform.
	Platform settings.Platform

	// Logger defaults to the stack's logger.
	Logger *slog.Logger
}

// ConfigDirectories returns the existing configuration directories
// named dirName in the ancestors of every root, outermost first. The
// filesystem root itself is never searched. A directory reachable from
// several roots is listed once; with caseInsensitive, paths differing
// only in case are the same directory.
func ConfigDirectories(roots []string, dirName string, caseInsensitive bool) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, root := range roots {
		absolute, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", root, err)
		}

		var ancestors []string
		for current := filepath.Clean(absolute); ; {
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			ancestors = append(ancestors, current)
			current = parent
		}

		for index := len(ancestors) - 1; index >= 0; index-- {
			candidate := filepath.Join(ancestors[index], dirName)
			key := candidate
			if caseInsensitive {
				key = strings.ToLower(candidate)
			}
			if seen[key] {
				continue
			}
			info, err := os.Stat(candidate)
			if err != nil || !info.IsDir() {
				continue
			}
			seen[key] = true
			result = append(result, candidate)
		}
	}
	return result, nil
}

// NewHierarchical builds a context from the configuration directories
// above roots. Files are loaded directory by directory, outermost first,
// each directory in platform load order. Files whose content is already
// loaded on the stack, or earlier in this context, are skipped. The
// context is returned unpushed.
func NewHierarchical(stack *Stack, name string, roots []string, options HierarchicalOptions) (*Context, error) {
	dirName := options.DirectoryName
	if dirName == "" {
		dirName = DefaultConfigDirectory
	}
	platform := options.Platform
	if platform.Tag == "" {
		platform = settings.CurrentPlatform()
	}
	logger := options.Logger
	if logger == nil {
		logger = stack.logger
	}

	directories, err := ConfigDirectories(roots, dirName, platform.CaseInsensitivePaths())
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, directory := range directories {
		files, err := settings.ListDirectory(directory, platform)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}

	local := make(filehash.Set)
	result, err := settings.LoadFiles(paths, func(source settings.FileSource) bool {
		return stack.HasFile(source.Hash) || !local.Add(source.Hash, source.Path)
	})
	if err != nil {
		return nil, fmt.Errorf("hierarchical context %q: %w", name, err)
	}

	for _, skipped := range result.Skipped {
		logger.Debug("settings file already loaded",
			"context", name,
			"path", skipped.Path,
			"hash", skipped.Hash.Short(),
		)
	}
	logger.Debug("hierarchical context loaded",
		"context", name,
		"directories", len(directories),
		"files", len(result.Loaded),
	)

	c := NewWithSettings(name, result.Tree)
	c.files = result.Loaded
	return c, nil
}
