// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// ReservedPrefix marks arguments consumed by the launcher. They are
// never forwarded to the launched executable.
const ReservedPrefix = "---"

// Options are the launcher switches given as "---" arguments.
type Options struct {
	// Help requests usage output; nothing is launched.
	Help bool
	// Debug and Trace raise the launcher's log level.
	Debug bool
	Trace bool
	// ReadStdin appends newline-separated arguments read from stdin.
	ReadStdin bool
	// DryRun resolves and validates everything, runs actions in
	// dry-run mode, and launches nothing.
	DryRun bool
	// ListPackages prints the flattened packages instead of launching.
	ListPackages bool
	// Package names the root package explicitly, optionally with a
	// version constraint ("maya>=2024").
	Package string
}

// ArgumentsResult is the outcome of [ParseArguments].
type ArgumentsResult struct {
	Options

	// Arguments are forwarded to the executable, in order.
	Arguments []string

	// Overrides holds the "---key.path=value" settings, in argument
	// order.
	Overrides *tree.Tree

	// Handled is true when the arguments were fully served by the
	// launcher itself (help output) and nothing should be launched.
	Handled bool
}

var switches = map[string]func(*Options){
	"help":       func(o *Options) { o.Help = true },
	"debug":      func(o *Options) { o.Debug = true },
	"trace":      func(o *Options) { o.Trace = true },
	"read-stdin": func(o *Options) { o.ReadStdin = true },
	"dry-run":    func(o *Options) { o.DryRun = true },
	"packages":   func(o *Options) { o.ListPackages = true },
}

// ParseArguments splits raw arguments into launcher options, settings
// overrides and forwarded arguments. A bare "---" ends interception:
// every later argument is forwarded verbatim.
func ParseArguments(args []string) (*ArgumentsResult, error) {
	result := &ArgumentsResult{Overrides: tree.New()}

	for index, argument := range args {
		if !strings.HasPrefix(argument, ReservedPrefix) {
			result.Arguments = append(result.Arguments, argument)
			continue
		}
		body := argument[len(ReservedPrefix):]
		if body == "" {
			result.Arguments = append(result.Arguments, args[index+1:]...)
			break
		}

		name, value, hasValue := strings.Cut(body, "=")
		if apply, ok := switches[name]; ok {
			if hasValue {
				return nil, &ArgumentError{Argument: argument, Reason: "switch takes no value"}
			}
			apply(&result.Options)
			continue
		}
		if name == "package" {
			if !hasValue || value == "" {
				return nil, &ArgumentError{Argument: argument, Reason: "expected ---package=<name>"}
			}
			result.Package = value
			continue
		}

		if !hasValue {
			return nil, &ArgumentError{Argument: argument, Reason: "unknown switch"}
		}
		if err := setOverride(result.Overrides, name, value); err != nil {
			return nil, &ArgumentError{Argument: argument, Reason: err.Error()}
		}
	}

	result.Handled = result.Help
	return result, nil
}

// setOverride stores value at the dotted key. The value is parsed as a
// YAML scalar or flow collection, so "---threads=4" yields an integer
// and "---paths=[a, b]" a list. Floats keep their text: "2024.10" is a
// version more often than a number, and the settings schema converts
// it where a number is declared.
func setOverride(overrides *tree.Tree, key, value string) error {
	for _, part := range tree.SplitPath(key) {
		if part == "" {
			return fmt.Errorf("empty key segment in %q", key)
		}
	}

	var parsed any = value
	if value != "" {
		var decoded any
		if err := yaml.Unmarshal([]byte(value), &decoded); err == nil {
			if _, isFloat := decoded.(float64); !isFloat && decoded != nil {
				parsed = decoded
			}
		}
	}
	return overrides.SetPath(key, tree.Normalize(parsed))
}

// ReadArguments reads additional arguments from r, one per line. Blank
// lines are skipped.
func ReadArguments(r io.Reader) ([]string, error) {
	var arguments []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		arguments = append(arguments, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading arguments from stdin: %w", err)
	}
	return arguments, nil
}
