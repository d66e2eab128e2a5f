// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package procctl

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// replaceProcess is the default [ExecFunc].
var replaceProcess ExecFunc = unix.Exec

// siblingAttributes starts a sibling in a new session, detached from
// the launcher's controlling terminal.
func siblingAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
