// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/stagehand/lib/process"
)

func testTree(ran *[]string) *Command {
	var verbose bool
	return &Command{
		Name:   "stagehand",
		Output: &bytes.Buffer{},
		Subcommands: []*Command{
			{
				Name:    "resolve",
				Summary: "Resolve a package",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
					flagSet.BoolVar(&verbose, "verbose", false, "print more")
					return flagSet
				},
				Run: func(_ context.Context, args []string) error {
					*ran = append(*ran, "resolve "+strings.Join(args, " "))
					if verbose {
						*ran = append(*ran, "verbose")
					}
					return nil
				},
			},
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(context.Context, []string) error {
					*ran = append(*ran, "version")
					return nil
				},
			},
		},
	}
}

func TestExecuteDispatch(t *testing.T) {
	var ran []string
	root := testTree(&ran)
	if err := root.Execute(context.Background(), []string{"resolve", "--verbose", "maya"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := root.Execute(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"resolve maya", "verbose", "version"}
	if strings.Join(ran, "|") != strings.Join(want, "|") {
		t.Errorf("ran %q, want %q", ran, want)
	}
}

func TestExecuteSuggestions(t *testing.T) {
	var ran []string
	root := testTree(&ran)

	err := root.Execute(context.Background(), []string{"reslove"})
	var usage *UsageError
	if !errors.As(err, &usage) || !strings.Contains(usage.Message, `did you mean "resolve"`) {
		t.Errorf("unknown command error = %v", err)
	}
	if process.ExitCodeFor(err) != process.ExitArgumentError {
		t.Errorf("exit code = %d, want %d", process.ExitCodeFor(err), process.ExitArgumentError)
	}

	err = root.Execute(context.Background(), []string{"resolve", "--verbos"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --verbose?") {
		t.Errorf("unknown flag error = %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("commands ran despite errors: %q", ran)
	}
}

func TestPrintHelp(t *testing.T) {
	var ran []string
	root := testTree(&ran)
	var out bytes.Buffer
	root.PrintHelp(&out)
	for _, fragment := range []string{"Usage:\n  stagehand <command> [flags]", "resolve", "Print version information"} {
		if !strings.Contains(out.String(), fragment) {
			t.Errorf("help output missing %q:\n%s", fragment, out.String())
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "env", 3},
		{"env", "env", 0},
		{"pakcages", "packages", 2},
		{"inspect", "insect", 1},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"trace": LevelTrace,
		"DEBUG": slog.LevelDebug,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
	} {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestLoggerLevelNames(t *testing.T) {
	var buffer bytes.Buffer
	logger := newLogger(&buffer, false, LevelTrace)
	logger.Log(context.Background(), LevelTrace, "lookup", "key", "render.threads")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("decoding log line %q: %v", buffer.String(), err)
	}
	if record["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", record["level"])
	}
}

func TestStylerPlainForBuffers(t *testing.T) {
	styler := NewStyler(&bytes.Buffer{})
	if got := styler.Diff("+added\n-removed\n"); got != "+added\n-removed\n" {
		t.Errorf("Diff on a buffer = %q, want unchanged text", got)
	}
	if got := styler.Heading("Packages"); got != "Packages" {
		t.Errorf("Heading on a buffer = %q", got)
	}
}
