// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/settings"
	"github.com/bureau-foundation/stagehand/lib/transaction"
	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Launch is the resolved plan of one launch. The controller fills it in
// step by step; delegates receive it at every hook.
type Launch struct {
	// Invoked is the name the launch was requested under: a package
	// name, an alias, or a requirement.
	Invoked string
	Root    *Package

	// Constraint is the version constraint given for the root.
	Constraint string

	Packages  *Flattened
	Delegate  Delegate
	Overrides *tree.Tree

	// Settings is the aggregated settings once every package context
	// is on the stack.
	Settings *settings.Provider

	Environment *Environment
	Rejected    []PathRejection

	Executable string

	// Arguments excludes the executable itself.
	Arguments []string
	Dir       string
	Mode      LaunchMode
	DryRun    bool

	Actions *transaction.Transaction
	Process ProcessInfo
}

// Argv returns the full argument vector.
func (l *Launch) Argv() []string {
	return append([]string{l.Executable}, l.Arguments...)
}

// ExecFunc replaces the current process image. It returns only on
// failure.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// findExecutable resolves name against the PATH of env. Names with a
// path separator are taken relative to dir. A candidate that is the
// same file as self (the launcher, when invoked through a symlink named
// after the package) is skipped.
func findExecutable(name string, env *Environment, dir, self string) (string, error) {
	var candidates []string
	if strings.ContainsRune(name, filepath.Separator) {
		candidate := name
		if !filepath.IsAbs(candidate) && dir != "" {
			candidate = filepath.Join(dir, candidate)
		}
		candidates = append(candidates, candidate)
	} else {
		for _, directory := range filepath.SplitList(env.Get("PATH")) {
			if directory == "" {
				continue
			}
			candidates = append(candidates, filepath.Join(directory, name))
		}
	}

	for _, candidate := range candidates {
		if isExecutable(candidate) && !sameFile(candidate, self) {
			absolute, err := filepath.Abs(candidate)
			if err != nil {
				return "", err
			}
			return absolute, nil
		}
	}
	return "", &ExecutableNotFoundError{Name: name, Candidates: candidates}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

func sameFile(path, other string) bool {
	if other == "" {
		return false
	}
	left, err := os.Stat(path)
	if err != nil {
		return false
	}
	right, err := os.Stat(other)
	if err != nil {
		return false
	}
	return os.SameFile(left, right)
}

