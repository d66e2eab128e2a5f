// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs an external program. An optional rollback command undoes
// its effect.
type Command struct {
	// Args is the program and its arguments.
	Args []string
	// RollbackArgs, when set, runs on rollback if Args succeeded.
	RollbackArgs []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env replaces the environment when non-nil.
	Env []string

	succeeded bool
}

func (o *Command) Name() string {
	return "command " + strings.Join(o.Args, " ")
}

func (o *Command) Apply(tx *Transaction) error {
	if len(o.Args) == 0 {
		return fmt.Errorf("command has no program")
	}
	if _, err := exec.LookPath(o.Args[0]); err != nil {
		return fmt.Errorf("command program: %w", err)
	}
	if tx.DryRun() {
		return nil
	}
	if err := o.run(tx, o.Args); err != nil {
		return err
	}
	o.succeeded = true
	return nil
}

func (o *Command) Rollback(tx *Transaction) error {
	if !o.succeeded || len(o.RollbackArgs) == 0 {
		return nil
	}
	if err := o.run(tx, o.RollbackArgs); err != nil {
		return err
	}
	o.succeeded = false
	return nil
}

func (o *Command) run(tx *Transaction, args []string) error {
	command := exec.CommandContext(tx.Context(), args[0], args[1:]...)
	command.Dir = o.Dir
	command.Env = o.Env
	var output bytes.Buffer
	command.Stdout = &output
	command.Stderr = &output

	err := command.Run()
	tx.Logger().Debug("command finished",
		"args", args,
		"output", strings.TrimSpace(output.String()),
		"error", err,
	)
	if err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return nil
}
