// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/ctxstack"
	"github.com/bureau-foundation/stagehand/lib/settings"
)

// LaunchMode is how the launched process is started.
type LaunchMode int

const (
	// Replace execs the executable in place of the launcher.
	Replace LaunchMode = iota
	// Spawn starts a child and communicates with it until it exits.
	Spawn
	// Sibling starts a detached process in a new session and returns.
	Sibling
)

func (m LaunchMode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Spawn:
		return "spawn"
	case Sibling:
		return "sibling"
	default:
		return fmt.Sprintf("LaunchMode(%d)", int(m))
	}
}

// ParseLaunchMode parses "replace", "spawn" or "sibling".
func ParseLaunchMode(text string) (LaunchMode, error) {
	for _, mode := range []LaunchMode{Replace, Spawn, Sibling} {
		if mode.String() == text {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown launch mode %q (want replace, spawn or sibling)", text)
}

// Delegate customizes a launch. The controller calls the hooks in
// this order: PrepareContext once the package contexts are on the
// stack; VariableIsPath, VariableIsAppendable, VerifyPath and
// ResolveValue during environment composition; PreStart and LaunchMode
// after actions ran; ProcessFileDescriptors and Communicate for spawned
// children only.
type Delegate interface {
	// PrepareContext may read settings from, or push contexts onto,
	// the stack before the environment is composed.
	PrepareContext(stack *ctxstack.Stack, launch *Launch) error

	// VariableIsPath reports whether a variable holds a path list.
	VariableIsPath(name string) bool

	// VariableIsAppendable reports whether an automatic directive
	// appends value to a path variable instead of replacing it.
	VariableIsAppendable(name, value string) bool

	// VerifyPath normalizes one path element. Returning false drops the
	// element.
	VerifyPath(name, path string) (string, bool)

	// ResolveValue expands a directive value against the environment
	// composed so far. A trailing lock marker must be preserved.
	ResolveValue(name, value string, env *Environment) (string, error)

	// PreStart runs after actions, immediately before launch.
	PreStart(launch *Launch) error

	// LaunchMode picks how the executable is started.
	LaunchMode(launch *Launch) LaunchMode

	// ProcessFileDescriptors wires the standard streams of a spawned
	// child before it starts.
	ProcessFileDescriptors(launch *Launch, cmd *exec.Cmd) (*Child, error)

	// Communicate runs while a spawned child is alive. It must consume
	// every pipe of child to EOF.
	Communicate(ctx context.Context, launch *Launch, child *Child) error
}

// Child is a spawned process with the pipes its delegate requested.
type Child struct {
	Cmd *exec.Cmd
	// Stdout and Stderr are nil when the stream is not piped.
	Stdout io.Reader
	Stderr io.Reader
}

// DefaultDelegateName is the registered name of [DefaultDelegate].
const DefaultDelegateName = "default"

// LauncherSchema declares the "stagehand" settings the default delegate
// reads.
var LauncherSchema = settings.NewSchema("stagehand", map[string]any{
	"launch_mode":            Replace.String(),
	"path_variables":         []any{},
	"require_existing_paths": false,
	"progress_pattern":       `^(?:PROGRESS|progress):\s*([0-9]+(?:\.[0-9]+)?)%?\s*$`,
	"fatal_pattern":          `^(?:FATAL|fatal)(?::|\s)`,
})

// defaultPathVariables are path lists on every platform.
var defaultPathVariables = []string{
	"PATH",
	PythonPathVariable,
	"LD_LIBRARY_PATH",
	"DYLD_LIBRARY_PATH",
	"DYLD_FRAMEWORK_PATH",
	"MANPATH",
	"PKG_CONFIG_PATH",
	"CLASSPATH",
	"XDG_DATA_DIRS",
	"XDG_CONFIG_DIRS",
}

// DefaultDelegate is the delegate used when a package names none. Its
// behavior is configured by the "stagehand" settings ([LauncherSchema]).
type DefaultDelegate struct {
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	mode            LaunchMode
	pathVariables   []string
	requireExisting bool
	classifier      LineClassifier
}

// NewDefaultDelegate returns a default delegate on the process's
// standard streams.
func NewDefaultDelegate(logger *slog.Logger) *DefaultDelegate {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultDelegate{
		Logger: logger,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (d *DefaultDelegate) PrepareContext(stack *ctxstack.Stack, launch *Launch) error {
	view, err := stack.Settings().Value(LauncherSchema)
	if err != nil {
		return fmt.Errorf("launcher settings: %w", err)
	}

	modeText, err := view.String("launch_mode")
	if err != nil {
		return err
	}
	if d.mode, err = ParseLaunchMode(modeText); err != nil {
		return fmt.Errorf("stagehand.launch_mode: %w", err)
	}
	if d.pathVariables, err = view.Strings("path_variables"); err != nil {
		return err
	}
	if d.requireExisting, err = view.Bool("require_existing_paths"); err != nil {
		return err
	}

	classifier := &PatternClassifier{}
	for key, target := range map[string]**regexp.Regexp{
		"progress_pattern": &classifier.Progress,
		"fatal_pattern":    &classifier.Fatal,
	} {
		pattern, err := view.String(key)
		if err != nil {
			return err
		}
		if pattern == "" {
			continue
		}
		if *target, err = regexp.Compile(pattern); err != nil {
			return fmt.Errorf("stagehand.%s: %w", key, err)
		}
	}
	d.classifier = classifier
	return nil
}

func (d *DefaultDelegate) VariableIsPath(name string) bool {
	return slices.Contains(defaultPathVariables, name) ||
		slices.Contains(d.pathVariables, name) ||
		strings.HasSuffix(name, "_PATH")
}

func (d *DefaultDelegate) VariableIsAppendable(name, value string) bool {
	return true
}

// VerifyPath drops empty elements and elements with unresolved
// references, cleans the rest, and with require_existing_paths drops
// elements that do not exist.
func (d *DefaultDelegate) VerifyPath(name, path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" || referencePattern.MatchString(path) {
		return "", false
	}
	path = filepath.Clean(path)
	if d.requireExisting {
		if _, err := os.Stat(path); err != nil {
			return "", false
		}
	}
	return path, true
}

func (d *DefaultDelegate) ResolveValue(name, value string, env *Environment) (string, error) {
	return ExpandReferences(value, env.Lookup), nil
}

func (d *DefaultDelegate) PreStart(launch *Launch) error {
	d.Logger.Info("launching",
		"package", launch.Root.String(),
		"executable", launch.Executable,
		"arguments", launch.Arguments,
		"dir", launch.Dir,
		"mode", launch.Mode.String(),
	)
	return nil
}

func (d *DefaultDelegate) LaunchMode(launch *Launch) LaunchMode {
	return d.mode
}

func (d *DefaultDelegate) ProcessFileDescriptors(launch *Launch, cmd *exec.Cmd) (*Child, error) {
	cmd.Stdin = d.Stdin
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	return &Child{Cmd: cmd, Stdout: stdout, Stderr: stderr}, nil
}

// Communicate forwards the child's output line by line. Progress lines
// are logged instead of printed; the first fatal line is printed and
// returned as a [FatalOutputError] once the streams close.
func (d *DefaultDelegate) Communicate(ctx context.Context, launch *Launch, child *Child) error {
	classifier := d.classifier
	if classifier == nil {
		classifier = &PatternClassifier{}
	}
	outputs := map[Stream]io.Writer{Stdout: d.Stdout, Stderr: d.Stderr}

	var fatal *FatalOutputError
	err := Multiplex(ctx, child.Streams(), func(line Line) {
		class, detail := classifier.Classify(line.Stream, line.Text)
		switch class {
		case LineIgnore:
			return
		case LineProgress:
			d.Logger.Info("progress", "package", launch.Root.Name, "percent", detail)
			return
		case LineFatal:
			if fatal == nil {
				fatal = &FatalOutputError{Line: line.Text}
			}
			d.Logger.Error("child reported fatal error", "package", launch.Root.Name, "line", line.Text)
		}
		fmt.Fprintln(outputs[line.Stream], line.Text)
	})
	if err != nil {
		return err
	}
	if fatal != nil {
		return fatal
	}
	return nil
}

// Streams returns the piped streams of the child.
func (c *Child) Streams() map[Stream]io.Reader {
	streams := make(map[Stream]io.Reader)
	if c.Stdout != nil {
		streams[Stdout] = c.Stdout
	}
	if c.Stderr != nil {
		streams[Stderr] = c.Stderr
	}
	return streams
}

// Drain discards whatever remains on the piped streams, so a child
// still writing after Communicate returned cannot block on a full pipe.
// It does not wait for the streams to close.
func (c *Child) Drain() {
	for _, reader := range c.Streams() {
		go io.Copy(io.Discard, reader)
	}
}
