// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/stagehand/cmd/stagehand/cli"
	"github.com/bureau-foundation/stagehand/procctl"
)

// resolveReport is the JSON form of a resolved launch.
type resolveReport struct {
	Package     string                  `json:"package"`
	Version     string                  `json:"version,omitempty"`
	Delegate    string                  `json:"delegate"`
	Executable  string                  `json:"executable"`
	Arguments   []string                `json:"arguments"`
	Directory   string                  `json:"directory"`
	Packages    []procctl.PackageRef    `json:"packages"`
	Actions     []string                `json:"actions"`
	Rejected    []procctl.PathRejection `json:"rejected,omitempty"`
	Environment map[string]string       `json:"environment,omitempty"`
}

func newResolveReport(launch *procctl.Launch, delegate string) *resolveReport {
	report := &resolveReport{
		Package:    launch.Root.Name,
		Version:    launch.Root.Version,
		Delegate:   delegate,
		Executable: launch.Executable,
		Arguments:  launch.Arguments,
		Directory:  launch.Dir,
		Packages:   launch.Packages.Refs(),
		Rejected:   launch.Rejected,
	}
	if report.Arguments == nil {
		report.Arguments = []string{}
	}
	report.Actions = []string{}
	for _, pkg := range launch.Packages.Packages {
		for _, ref := range pkg.Actions {
			report.Actions = append(report.Actions, ref.String())
		}
	}
	return report
}

// delegateName is the delegate type a launch of launch.Root uses.
func (s *session) delegateName(launch *procctl.Launch) string {
	if launch.Root.Delegate != "" {
		return launch.Root.Delegate
	}
	return s.site.Process.DefaultDelegate
}

// resolveFlags are the flags of the reporting commands.
type resolveFlags struct {
	siteFlags
	json bool
}

func (f *resolveFlags) flagSet(name string, extra func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		f.register(flagSet)
		flagSet.BoolVar(&f.json, "json", false, "output as JSON")
		if extra != nil {
			extra(flagSet)
		}
		flagSet.SetInterspersed(false)
		return flagSet
	}
}

// resolve parses the launch arguments after the package name and
// resolves the launch without applying actions.
func (r *Runtime) resolve(flags *siteFlags, args []string, compose bool) (*session, *procctl.Launch, error) {
	if len(args) == 0 {
		return nil, nil, &cli.UsageError{Message: "package name required"}
	}
	launchArgs, err := r.parseLaunchArguments(args[1:])
	if err != nil {
		return nil, nil, err
	}
	s, err := r.openSession(flags, launchArgs.Options)
	if err != nil {
		return nil, nil, err
	}
	var launch *procctl.Launch
	if compose {
		launch, err = s.controller.Resolve(args[0], launchArgs)
	} else {
		launch, err = s.controller.Plan(args[0], launchArgs)
	}
	if err != nil {
		return nil, nil, err
	}
	return s, launch, nil
}

func resolveCommand(r *Runtime) *cli.Command {
	var flags resolveFlags
	return &cli.Command{
		Name:    "resolve",
		Summary: "Show what launching a package would run",
		Description: `Resolve a package and print the executable, arguments, working
directory, flattened packages and actions a launch would use. Nothing
is applied or started. Launch options and overrides may follow the
package name.`,
		Usage: "stagehand resolve [flags] <package> [---option]... [argument]...",
		Flags: flags.flagSet("resolve", nil),
		Run: func(_ context.Context, args []string) error {
			s, launch, err := r.resolve(&flags.siteFlags, args, true)
			if err != nil {
				return err
			}
			report := newResolveReport(launch, s.delegateName(launch))
			if flags.json {
				return writeJSON(r.Stdout, report)
			}
			writeResolveReport(r.Stdout, report)
			return nil
		},
	}
}

func writeResolveReport(w io.Writer, report *resolveReport) {
	styler := cli.NewStyler(w)
	packages := make([]string, len(report.Packages))
	for index, ref := range report.Packages {
		packages[index] = strings.TrimSpace(ref.Name + " " + ref.Version)
	}

	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s %s\n", styler.Heading("Package"), report.Package, styler.Faint(report.Version))
	fmt.Fprintf(tw, "%s\t%s\n", styler.Heading("Delegate"), report.Delegate)
	fmt.Fprintf(tw, "%s\t%s\n", styler.Heading("Executable"), report.Executable)
	fmt.Fprintf(tw, "%s\t%s\n", styler.Heading("Arguments"), strings.Join(report.Arguments, " "))
	fmt.Fprintf(tw, "%s\t%s\n", styler.Heading("Directory"), report.Directory)
	fmt.Fprintf(tw, "%s\t%s\n", styler.Heading("Packages"), strings.Join(packages, ", "))
	fmt.Fprintf(tw, "%s\t%s\n", styler.Heading("Actions"), strings.Join(report.Actions, ", "))
	tw.Flush()

	for _, rejection := range report.Rejected {
		fmt.Fprintln(w, styler.Warning(fmt.Sprintf("warning: %s: %s entry %s does not exist",
			rejection.Package, rejection.Variable, rejection.Path)))
	}
}

func envCommand(r *Runtime) *cli.Command {
	var flags resolveFlags
	var export bool
	return &cli.Command{
		Name:    "env",
		Summary: "Print the environment a package would be launched with",
		Usage:   "stagehand env [flags] <package> [---option]...",
		Examples: []cli.Example{
			{Description: "Enter a shell with nuke's environment", Command: `eval "$(stagehand env --export nuke)"`},
		},
		Flags: flags.flagSet("env", func(flagSet *pflag.FlagSet) {
			flagSet.BoolVar(&export, "export", false, "print shell export statements")
		}),
		Run: func(_ context.Context, args []string) error {
			_, launch, err := r.resolve(&flags.siteFlags, args, true)
			if err != nil {
				return err
			}
			env := launch.Environment
			if flags.json {
				return writeJSON(r.Stdout, env.Map())
			}
			for _, name := range env.Names() {
				if export {
					fmt.Fprintf(r.Stdout, "export %s=%s\n", name, shellQuote(env.Get(name)))
				} else {
					fmt.Fprintf(r.Stdout, "%s=%s\n", name, env.Get(name))
				}
			}
			return nil
		},
	}
}

// shellQuote quotes value for a POSIX shell.
func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func packagesCommand(r *Runtime) *cli.Command {
	var flags resolveFlags
	return &cli.Command{
		Name:    "packages",
		Summary: "List the packages a launch would use",
		Description: `Flatten a package's requirements and print the packages in launch
order, dependencies first, with the packages exclusions removed.`,
		Usage: "stagehand packages [flags] <package> [---option]...",
		Flags: flags.flagSet("packages", nil),
		Run: func(_ context.Context, args []string) error {
			_, launch, err := r.resolve(&flags.siteFlags, args, false)
			if err != nil {
				return err
			}
			if flags.json {
				return writeJSON(r.Stdout, launch.Packages.Refs())
			}
			writePackages(r.Stdout, launch.Packages)
			return nil
		},
	}
}

// writePackages prints flattened packages in launch order.
func writePackages(w io.Writer, flattened *procctl.Flattened) {
	styler := cli.NewStyler(w)
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for _, ref := range flattened.Refs() {
		requires := ""
		if len(ref.Requires) > 0 {
			requires = styler.Faint("requires " + strings.Join(ref.Requires, ", "))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ref.Name, ref.Version, requires)
	}
	tw.Flush()

	for _, exclusion := range flattened.Excluded {
		fmt.Fprintf(w, "%s\n", styler.Faint(fmt.Sprintf("excluded %s (by %s)", exclusion.Package, exclusion.ExcludedBy)))
	}
	for _, exclusion := range flattened.Late {
		fmt.Fprintln(w, styler.Warning(fmt.Sprintf("warning: %s excludes %s, which was already placed",
			exclusion.ExcludedBy, exclusion.Package)))
	}
}

// writeJSON writes value as indented JSON.
func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
