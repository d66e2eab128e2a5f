// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/bureau-foundation/stagehand/lib/process"
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have already written its
// own output.
//
// The launcher uses it for help output requested with "---help", which
// exits with [process.ExitArgumentHandled] rather than success so that
// wrapper scripts can tell a launch from a help screen.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. [process.ExitCodeFor] checks for this
// interface on returned errors.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Reported keeps [process.Run] from printing the error.
func (e *ExitError) Reported() bool {
	return true
}

// UsageError is a malformed command line. It is printed and exits with
// [process.ExitArgumentError].
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// ExitCode returns [process.ExitArgumentError].
func (e *UsageError) ExitCode() int {
	return process.ExitArgumentError
}
