// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"io"
	"log/slog"

	"github.com/bureau-foundation/stagehand/lib/ctxstack"
)

// BuiltinOptions configures the delegate and actions installed by
// [RegisterBuiltins]. Nil streams mean the process's own.
type BuiltinOptions struct {
	Logger *slog.Logger

	// Identities are age identity files tried by every decrypt action.
	Identities []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RegisterBuiltins registers the default delegate type and the built-in
// action types in c, usually the bottom context of a stack.
func RegisterBuiltins(c *ctxstack.Context, options BuiltinOptions) error {
	_, err := ctxstack.RegisterType[Delegate](c, DefaultDelegateName, func() (Delegate, error) {
		delegate := NewDefaultDelegate(options.Logger)
		if options.Stdin != nil {
			delegate.Stdin = options.Stdin
		}
		if options.Stdout != nil {
			delegate.Stdout = options.Stdout
		}
		if options.Stderr != nil {
			delegate.Stderr = options.Stderr
		}
		return delegate, nil
	})
	if err != nil {
		return err
	}
	for _, action := range BuiltinActionTypes(options.Identities) {
		ctxstack.Register[ActionType](c, action)
	}
	return nil
}
