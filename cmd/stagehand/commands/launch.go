// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/stagehand/cmd/stagehand/cli"
	"github.com/bureau-foundation/stagehand/lib/process"
	"github.com/bureau-foundation/stagehand/procctl"
)

// ProgramName is the binary's own name. Invoked under any other name,
// the binary launches the package of that name.
const ProgramName = "stagehand"

// InvocationName returns the package name argv0 asks for: its base
// name without extension.
func InvocationName(argv0 string) string {
	base := filepath.Base(argv0)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Main runs the binary for argv. Under its own name it dispatches the
// command tree; under a package name it launches that package with
// argv[1:] as launch arguments.
func Main(ctx context.Context, r *Runtime, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty argument vector")
	}
	name := InvocationName(argv[0])
	if name == ProgramName {
		return Root(r).Execute(ctx, argv[1:])
	}
	return r.launch(ctx, &siteFlags{}, name, argv[1:])
}

func launchCommand(r *Runtime) *cli.Command {
	var flags siteFlags
	return &cli.Command{
		Name:    "launch",
		Summary: "Resolve and launch a package",
		Description: `Resolve a package's requirements, compose its environment, apply
its actions and start its executable.

Arguments after the package name belong to the launch. Arguments
starting with "---" are launcher options (---help, ---debug, ---trace,
---dry-run, ---read-stdin, ---packages, ---package=NAME) or settings
overrides (---render.threads=8); a bare "---" forwards everything after
it. All other arguments are passed to the executable.`,
		Usage: "stagehand launch [flags] <package> [---option]... [argument]...",
		Examples: []cli.Example{
			{Description: "Launch maya with an extra plug-in path", Command: "stagehand launch maya ---maya.plugins=[/show/plugins] -batch"},
			{Description: "Show what would run without running it", Command: "stagehand launch nuke ---dry-run"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("launch", pflag.ContinueOnError)
			flags.register(flagSet)
			// Launch arguments are not ours to parse.
			flagSet.SetInterspersed(false)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return &cli.UsageError{Message: "launch: package name required"}
			}
			return r.launch(ctx, &flags, args[0], args[1:])
		},
	}
}

// launch is the complete launch flow for the package invoked.
func (r *Runtime) launch(ctx context.Context, flags *siteFlags, invoked string, raw []string) error {
	args, err := r.parseLaunchArguments(raw)
	if err != nil {
		return err
	}
	if args.Handled {
		printLaunchHelp(r.Stdout, invoked)
		return &cli.ExitError{Code: process.ExitArgumentHandled}
	}

	s, err := r.openSession(flags, args.Options)
	if err != nil {
		return err
	}

	if args.ListPackages {
		launch, err := s.controller.Plan(invoked, args)
		if err != nil {
			return err
		}
		writePackages(r.Stdout, launch.Packages)
		return nil
	}

	err = s.controller.Run(ctx, invoked, args)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", process.ErrInterrupted, err)
	}
	return err
}

// parseLaunchArguments parses raw and, for "---read-stdin", appends the
// arguments read from stdin.
func (r *Runtime) parseLaunchArguments(raw []string) (*procctl.ArgumentsResult, error) {
	args, err := procctl.ParseArguments(raw)
	if err != nil {
		return nil, err
	}
	if !args.ReadStdin || args.Handled {
		return args, nil
	}
	if file, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return nil, &procctl.ArgumentError{
			Argument: procctl.ReservedPrefix + "read-stdin",
			Reason:   "stdin is a terminal; pipe the arguments in",
		}
	}
	extra, err := procctl.ReadArguments(r.Stdin)
	if err != nil {
		return nil, err
	}
	args.Arguments = append(args.Arguments, extra...)
	return args, nil
}

func printLaunchHelp(w io.Writer, invoked string) {
	fmt.Fprintf(w, `Launch %[1]s through stagehand.

Usage:
  %[1]s [---option]... [argument]...

Launcher options:
  ---help             show this help and exit
  ---debug            log resolution details
  ---trace            log every lookup and operation step
  ---dry-run          resolve and validate, run actions in dry-run mode, launch nothing
  ---read-stdin       append arguments read from stdin, one per line
  ---packages         print the resolved packages and exit
  ---package=NAME     launch NAME (optionally NAME>=VERSION) instead of %[1]s
  ---KEY.PATH=VALUE   override a setting for this launch
  ---                 forward every following argument unchanged

Every other argument is passed to the executable.
`, invoked)
}
