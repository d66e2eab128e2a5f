// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for stagehand: the
// exit-code taxonomy, the mapping from errors to exit codes, and the
// raw I/O that happens before or after the structured logger exists.
//
// Exit codes are part of the launcher's contract with the pipeline
// scripts that invoke it:
//
//	0    success
//	1    general error
//	2    file error (missing executable, unreadable settings file)
//	3    argument error
//	4    keyboard interrupt
//	5    argument handled (---help and similar; nothing was launched)
//	255  unhandled (a panic reached the entrypoint)
//
// Errors opt into a specific code by implementing ExitCode() int;
// [ExitCodeFor] also recognizes [ErrInterrupted] and filesystem errors.
// [Run] prints every error except those whose Reported() bool method
// says the user has already seen it.
package process
