// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stagehand/cmd/stagehand/cli"
	"github.com/bureau-foundation/stagehand/lib/codec"
	"github.com/bureau-foundation/stagehand/lib/ctxstack"
	"github.com/bureau-foundation/stagehand/lib/process"
	"github.com/bureau-foundation/stagehand/lib/version"
	"github.com/bureau-foundation/stagehand/procctl"
)

type inspectFlags struct {
	siteFlags
	prefix   string
	diagnose bool
	check    bool
	json     bool
}

// inspectReport is the JSON form of an inspected launch.
type inspectReport struct {
	Process   procctl.ProcessInfo `json:"process"`
	Overrides map[string]any      `json:"overrides"`
	Settings  map[string]any      `json:"settings"`
	Files     map[string]string   `json:"files"`
}

func inspectCommand(r *Runtime) *cli.Command {
	var flags inspectFlags
	return &cli.Command{
		Name:    "inspect",
		Summary: "Show the launch state inherited from a parent launcher",
		Description: `Decode the introspection variables a launcher wrote into this
process's environment: the process record, the command-line overrides,
the resolved settings and the hashes of the settings files read.

With --check, the launched package is resolved again against the
current configuration and the launch-time overrides, and any
difference in the package list is reported.`,
		Usage: "stagehand inspect [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&flags.prefix, "prefix", "", "introspection variable prefix (default introspection.prefix)")
			flagSet.BoolVar(&flags.diagnose, "diagnose", false, "print the settings payload in CBOR diagnostic notation")
			flagSet.BoolVar(&flags.check, "check", false, "check the launch against the current configuration")
			flagSet.BoolVar(&flags.json, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return &cli.UsageError{Message: fmt.Sprintf("inspect takes no arguments (got %q)", args[0])}
			}
			return r.inspect(&flags)
		},
	}
}

func (r *Runtime) inspect(flags *inspectFlags) error {
	site, err := r.loadSite(&flags.siteFlags)
	if err != nil {
		return err
	}
	prefix := flags.prefix
	if prefix == "" {
		prefix = site.Introspection.Prefix
	}

	state, err := procctl.ReadIntrospection(r.lookupEnv, prefix)
	if errors.Is(err, procctl.ErrNoIntrospection) {
		return fmt.Errorf("no launch state in the environment (%s%s is not set)", prefix, procctl.ProcessSuffix)
	}
	if err != nil {
		return err
	}

	switch {
	case flags.check:
		return r.checkLaunch(&flags.siteFlags, state)
	case flags.diagnose:
		encoded, err := codec.Marshal(state.Settings)
		if err != nil {
			return err
		}
		diagnostic, err := codec.Diagnose(encoded)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.Stdout, diagnostic)
		return nil
	case flags.json:
		return writeJSON(r.Stdout, &inspectReport{
			Process:   state.Process,
			Overrides: state.Overrides.ToMap(),
			Settings:  state.Settings.ToMap(),
			Files:     state.Files.Strings(),
		})
	default:
		return writeInspectReport(r.Stdout, state)
	}
}

// checkLaunch resolves the inherited launch again on a fresh stack with
// the launch-time overrides on top.
func (r *Runtime) checkLaunch(flags *siteFlags, state *procctl.Introspection) error {
	s, err := r.openSession(flags, procctl.Options{})
	if err != nil {
		return err
	}
	commandline := ctxstack.NewWithSettings(procctl.CommandlineContextName, state.Overrides.Clone())
	err = procctl.GuardContextChange(s.stack, &state.Process, true, func() error {
		return s.stack.Push(commandline)
	}, s.logger)

	styler := cli.NewStyler(r.Stdout)
	if warning := launcherSkew(state.Process); warning != "" {
		fmt.Fprintln(r.Stdout, styler.Warning(warning))
	}
	var incompatible *procctl.IncompatibleError
	if errors.As(err, &incompatible) {
		fmt.Fprintln(r.Stdout, styler.Failure(incompatible.Error()))
		fmt.Fprint(r.Stdout, styler.Diff(incompatible.Report()))
		return &cli.ExitError{Code: process.ExitError}
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Stdout, styler.Success(fmt.Sprintf("%s resolves as at launch", state.Process.Package)))
	return nil
}

// launcherSkew describes why launch state recorded by info may not be
// read correctly by this build, or returns "".
func launcherSkew(info procctl.ProcessInfo) string {
	if info.LauncherVersion == "" {
		return ""
	}
	compatible, err := version.Compatible(info.LauncherVersion)
	if err != nil {
		return err.Error()
	}
	if !compatible {
		return fmt.Sprintf("launched by %s %s, this is %s", ProgramName, info.LauncherVersion, version.Version)
	}
	return ""
}

func writeInspectReport(w io.Writer, state *procctl.Introspection) error {
	styler := cli.NewStyler(w)
	info := state.Process

	fmt.Fprintln(w, styler.Heading("Process"))
	fmt.Fprintf(w, "  package:     %s\n", info.Package)
	fmt.Fprintf(w, "  executable:  %s\n", info.Executable)
	fmt.Fprintf(w, "  arguments:   %s\n", strings.Join(info.Arguments, " "))
	fmt.Fprintf(w, "  launcher:    pid %d, %s %s\n", info.PID, info.BootstrapDir, styler.Faint(info.LauncherVersion))
	if warning := launcherSkew(info); warning != "" {
		fmt.Fprintf(w, "               %s\n", styler.Warning(warning))
	}
	if info.Mode != "" {
		fmt.Fprintf(w, "  mode:        %s\n", info.Mode)
	}
	for _, ref := range info.Packages {
		fmt.Fprintf(w, "  %s %s\n", ref.Name, styler.Faint(ref.Version))
	}

	for _, section := range []struct {
		title string
		value any
	}{
		{"Overrides", state.Overrides},
		{"Settings", state.Settings},
	} {
		fmt.Fprintln(w, styler.Heading(section.title))
		text, err := yaml.Marshal(section.value)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", strings.ToLower(section.title), err)
		}
		for _, line := range strings.Split(strings.TrimRight(string(text), "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	fmt.Fprintln(w, styler.Heading("Settings files"))
	for _, path := range state.Files.Paths() {
		fmt.Fprintf(w, "  %s\n", path)
	}
	return nil
}
