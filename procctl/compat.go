// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/bureau-foundation/stagehand/lib/ctxstack"
	"github.com/bureau-foundation/stagehand/lib/treediff"
)

// IncompatibleError reports that the packages a context resolves to
// differ from the packages a process was launched with.
type IncompatibleError struct {
	Root     string
	Launched []PackageRef
	Current  []PackageRef
	Index    *treediff.DiffIndex
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("package %s resolves differently than at launch (%d changes)", e.Root, len(e.Index.Entries()))
}

// Report returns the per-key changes followed by a unified diff of the
// launched and current package lists.
func (e *IncompatibleError) Report() string {
	var builder strings.Builder
	builder.WriteString(e.Index.Render())
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        refLines(e.Launched),
		B:        refLines(e.Current),
		FromFile: "launched",
		ToFile:   "current",
		Context:  2,
	})
	if err == nil && diff != "" {
		builder.WriteString("\n")
		builder.WriteString(diff)
	}
	return builder.String()
}

func refLines(refs []PackageRef) []string {
	lines := make([]string, len(refs))
	for index, ref := range refs {
		line := ref.Name + " " + ref.Version
		if len(ref.Requires) > 0 {
			line += " requires " + strings.Join(ref.Requires, ", ")
		}
		lines[index] = line + "\n"
	}
	return lines
}

// CheckCompatibility re-flattens the root package of info against the
// current stack and compares the result with the packages recorded at
// launch.
func CheckCompatibility(stack *ctxstack.Stack, info *ProcessInfo, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	packages, err := PackagesFrom(stack.Merged())
	if err != nil {
		return err
	}
	flattened, err := Flatten(packages, info.Package, logger)
	if err != nil {
		return fmt.Errorf("resolving %s in the current context: %w", info.Package, err)
	}
	current := flattened.Refs()
	index := treediff.Compare(RefTree(info.Packages), RefTree(current))
	if index.Empty() {
		return nil
	}
	logger.Debug("package resolution changed", "package", info.Package, "changes", len(index.Entries()))
	return &IncompatibleError{Root: info.Package, Launched: info.Packages, Current: current, Index: index}
}

// GuardContextChange runs change, which pushes contexts onto stack, and
// then checks compatibility. When restore is set and either step fails,
// the stack is popped back to its size before change.
func GuardContextChange(stack *ctxstack.Stack, info *ProcessInfo, restore bool, change func() error, logger *slog.Logger) error {
	size := stack.Len()
	err := change()
	if err == nil {
		err = CheckCompatibility(stack, info, logger)
	}
	if err != nil && restore {
		stack.Pop(size)
	}
	return err
}
