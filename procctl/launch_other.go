// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package procctl

import (
	"errors"
	"syscall"
)

var replaceProcess ExecFunc = func(argv0 string, argv []string, envv []string) error {
	return errors.New("replace launch mode is not supported on this platform; use spawn")
}

func siblingAttributes() *syscall.SysProcAttr {
	return nil
}
