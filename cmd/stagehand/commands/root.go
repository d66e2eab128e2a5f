// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/stagehand/cmd/stagehand/cli"
	"github.com/bureau-foundation/stagehand/lib/version"
)

// Root builds the stagehand command tree.
func Root(r *Runtime) *cli.Command {
	return &cli.Command{
		Name: ProgramName,
		Description: `stagehand: launch pipeline applications in a resolved context.

Packages declared in layered configuration directories name their
executables, requirements, environment and setup actions. stagehand
flattens the requirements, composes the environment, applies the
actions as one transaction and starts the executable.

A symlink to stagehand named after a package launches that package.`,
		Output: r.Stderr,
		Subcommands: []*cli.Command{
			launchCommand(r),
			resolveCommand(r),
			envCommand(r),
			packagesCommand(r),
			inspectCommand(r),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(context.Context, []string) error {
					fmt.Fprintf(r.Stdout, "%s %s\n", ProgramName, version.Full())
					return nil
				},
			},
		},
	}
}
