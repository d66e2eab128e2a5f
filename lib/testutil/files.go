// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// WriteFile writes content to root/relative, creating parent
// directories, and returns the absolute path.
func WriteFile(t testing.TB, root, relative, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating directory for %s: %v", relative, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", relative, err)
	}
	return path
}

// WriteTree writes every file of files (relative path to content) under
// root, in sorted path order.
//
//	testutil.WriteTree(t, root, map[string]string{
//		"etc/launcher.yaml":     "launcher: {}\n",
//		"show/etc/packages.yaml": "packages: {}\n",
//	})
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		WriteFile(t, root, path, files[path])
	}
}

// Executable writes a shell script to dir/name and returns its path.
// The script body follows a "#!/bin/sh" line.
func Executable(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := WriteFile(t, dir, name, "#!/bin/sh\n"+body+"\n")
	if err := os.Chmod(path, 0o755); err != nil {
		t.Fatalf("making %s executable: %v", name, err)
	}
	return path
}
