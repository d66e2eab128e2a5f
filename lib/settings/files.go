// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/stagehand/lib/filehash"
	"github.com/bureau-foundation/stagehand/lib/tree"
	"github.com/bureau-foundation/stagehand/lib/treediff"
)

// FileSource identifies one loaded settings file.
type FileSource struct {
	Path string
	Hash filehash.Hash
}

// LoadResult is the outcome of [LoadFiles].
type LoadResult struct {
	// Tree is the merged content with lock markers intact, ready to be
	// layered further.
	Tree *tree.Tree

	// Loaded lists the files that contributed, in load order.
	Loaded []FileSource

	// Skipped lists the files the skip function rejected.
	Skipped []FileSource
}

// ParseData parses a settings file body. The format is chosen by the
// extension of name: YAML for .yaml and .yml, commented JSON for .json
// and .jsonc.
func ParseData(name string, data []byte) (*tree.Tree, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
	case ".json", ".jsonc":
		// Plain JSON is valid YAML; parsing it through the YAML decoder
		// keeps the key order of the file.
		data = jsonc.ToJSON(data)
	default:
		return nil, fmt.Errorf("%s: unsupported settings file type", name)
	}

	parsed, err := tree.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return parsed, nil
}

// ReadFile reads, hashes and parses one settings file.
func ReadFile(path string) (*tree.Tree, FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FileSource{}, fmt.Errorf("reading settings file: %w", err)
	}
	source := FileSource{Path: path, Hash: filehash.Bytes(data)}
	parsed, err := ParseData(path, data)
	if err != nil {
		return nil, source, err
	}
	return parsed, source, nil
}

// LoadFiles reads paths in order and merges them, later files
// overriding earlier ones except where a value is locked. When skip is
// non-nil it is consulted for every file after hashing; skipped files
// contribute nothing.
func LoadFiles(paths []string, skip func(FileSource) bool) (*LoadResult, error) {
	merge := treediff.NewAdditiveMerge(nil)
	result := &LoadResult{}

	for _, path := range paths {
		parsed, source, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if skip != nil && skip(source) {
			result.Skipped = append(result.Skipped, source)
			continue
		}
		merge.Merge(parsed)
		if err := merge.Err(); err != nil {
			return nil, fmt.Errorf("merging %s: %w", path, err)
		}
		result.Loaded = append(result.Loaded, source)
	}

	result.Tree = merge.Tree()
	return result, nil
}
