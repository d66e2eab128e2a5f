// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Exit codes returned by stagehand binaries.
const (
	ExitSuccess         = 0
	ExitError           = 1
	ExitFileError       = 2
	ExitArgumentError   = 3
	ExitInterrupted     = 4
	ExitArgumentHandled = 5
	ExitUnhandled       = 255
)

// ErrInterrupted marks a run stopped by SIGINT.
var ErrInterrupted = errors.New("interrupted")

// exitCoder is implemented by errors that carry their own exit code.
type exitCoder interface {
	ExitCode() int
}

// reporter is implemented by errors whose message was already shown to
// the user, such as a child process's own failure output.
type reporter interface {
	Reported() bool
}

// ExitCodeFor maps err to an exit code. The first error in the chain
// that implements ExitCode() int decides; otherwise interrupts map to
// [ExitInterrupted], filesystem errors to [ExitFileError], and anything
// else to [ExitError].
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	if errors.Is(err, ErrInterrupted) {
		return ExitInterrupted
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return ExitFileError
	}

	return ExitError
}

// Fatal writes "error: err" to stderr and exits with the code
// [ExitCodeFor] assigns. Use it in main() for errors from run() where
// the structured logger may not be initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitCodeFor(err))
}

// Run calls run and returns its exit code. A panic inside run is
// reported to stderr and becomes [ExitUnhandled].
func Run(run func() error) (code int) {
	defer func() {
		if recovered := recover(); recovered != nil {
			fmt.Fprintf(os.Stderr, "unhandled: %v\n", recovered)
			code = ExitUnhandled
		}
	}()

	err := run()
	if err != nil {
		var reported reporter
		if !errors.As(err, &reported) || !reported.Reported() {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return ExitCodeFor(err)
}
