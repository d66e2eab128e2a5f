// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/process"
)

// ArgumentError reports a malformed "---" argument.
type ArgumentError struct {
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Argument, e.Reason)
}

// ExitCode implements the exit-code contract of lib/process.
func (e *ArgumentError) ExitCode() int {
	return process.ExitArgumentError
}

// UnknownPackageError reports a package that is required or requested
// but not declared.
type UnknownPackageError struct {
	Name string
	// RequiredBy is empty for the root package.
	RequiredBy string
}

func (e *UnknownPackageError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("package %q is not declared", e.Name)
	}
	return fmt.Sprintf("package %q (required by %s) is not declared", e.Name, e.RequiredBy)
}

// ExcludedPackageError reports a launch of a package marked
// "exclude: true".
type ExcludedPackageError struct {
	Name string
}

func (e *ExcludedPackageError) Error() string {
	return fmt.Sprintf("package %q is excluded", e.Name)
}

// CycleError reports a requires cycle. Cycle starts and ends with the
// same package.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "requires cycle: " + strings.Join(e.Cycle, " -> ")
}

// VersionError reports a package whose version does not satisfy a
// requirement.
type VersionError struct {
	Requirement Requirement
	Version     string
	RequiredBy  string
	Err         error
}

func (e *VersionError) Error() string {
	by := ""
	if e.RequiredBy != "" {
		by = " (required by " + e.RequiredBy + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("requirement %s%s: %v", e.Requirement, by, e.Err)
	}
	return fmt.Sprintf("requirement %s%s not satisfied by version %q", e.Requirement, by, e.Version)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// ExecutableNotFoundError lists every path searched for the executable.
type ExecutableNotFoundError struct {
	Name       string
	Candidates []string
}

func (e *ExecutableNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("executable %q not found: no candidate paths", e.Name)
	}
	return fmt.Sprintf("executable %q not found; searched:\n  %s", e.Name, strings.Join(e.Candidates, "\n  "))
}

// ExitCode implements the exit-code contract of lib/process.
func (e *ExecutableNotFoundError) ExitCode() int {
	return process.ExitFileError
}

// UnknownDelegateError reports a delegate name with no registered type.
type UnknownDelegateError struct {
	Name      string
	Available []string
}

func (e *UnknownDelegateError) Error() string {
	return fmt.Sprintf("delegate %q is not registered (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// UnknownActionError reports an action reference whose type has no
// registered [ActionType].
type UnknownActionError struct {
	Ref     ActionRef
	Package string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("package %s: action %s: no action type %q registered", e.Package, e.Ref, e.Ref.Type)
}

// ChildExitError reports a spawned child that exited unsuccessfully.
// The launcher exits with the child's code.
type ChildExitError struct {
	Executable string
	Code       int
}

func (e *ChildExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Executable, e.Code)
}

// ExitCode implements the exit-code contract of lib/process.
func (e *ChildExitError) ExitCode() int {
	return e.Code
}

// Reported is true: the child wrote its own diagnostics.
func (e *ChildExitError) Reported() bool {
	return true
}

// FatalOutputError reports a line the line classifier marked fatal.
type FatalOutputError struct {
	Line string
}

func (e *FatalOutputError) Error() string {
	return "child reported fatal error: " + e.Line
}
