// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/stagehand/cmd/stagehand/cli"
	"github.com/bureau-foundation/stagehand/lib/config"
	"github.com/bureau-foundation/stagehand/lib/process"
	"github.com/bureau-foundation/stagehand/lib/testutil"
	"github.com/bureau-foundation/stagehand/lib/version"
	"github.com/bureau-foundation/stagehand/procctl"
)

const projectSettings = `
packages:
  tool:
    version: "1.0"
    requires: [lib]
    environment:
      variables:
        GREETING: hello
  lib:
    version: "1.0"
    environment:
      variables:
        LIB_ROOT: /opt/lib
`

// testProject is a project directory with settings and a tool on PATH.
type testProject struct {
	root   string
	bin    string
	stdout bytes.Buffer
	stderr bytes.Buffer
	execs  [][]string
}

var errExecStubbed = errors.New("exec stubbed")

func newTestProject(t *testing.T) *testProject {
	t.Helper()
	project := &testProject{root: t.TempDir()}
	project.bin = filepath.Join(project.root, "bin")
	testutil.Executable(t, project.bin, "tool", "exit 0")
	testutil.WriteTree(t, project.root, map[string]string{
		"shows/demo/etc/packages.yaml": projectSettings,
		"site.yaml":                    "search:\n  roots: [\"${STAGEHAND_ROOT}/shows/demo\"]\n",
	})
	return project
}

func (p *testProject) runtime(extra ...string) *Runtime {
	environ := append([]string{
		"PATH=" + p.bin,
		config.EnvironmentVariable + "=" + filepath.Join(p.root, "site.yaml"),
	}, extra...)
	return &Runtime{
		Stdin:   strings.NewReader(""),
		Stdout:  &p.stdout,
		Stderr:  &p.stderr,
		Environ: environ,
		Exec: func(argv0 string, argv []string, envv []string) error {
			p.execs = append(p.execs, argv)
			return errExecStubbed
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestInvocationName(t *testing.T) {
	tests := map[string]string{
		"/usr/local/bin/stagehand": "stagehand",
		"/show/bin/maya":           "maya",
		`nuke.exe`:                 "nuke",
		"./tool.sh":                "tool",
	}
	for argv0, want := range tests {
		if got := InvocationName(argv0); got != want {
			t.Errorf("InvocationName(%q) = %q, want %q", argv0, got, want)
		}
	}
}

func TestMainThroughSymlink(t *testing.T) {
	project := newTestProject(t)
	err := Main(context.Background(), project.runtime(),
		[]string{"/show/bin/tool", "---tool.mode=batch", "scene.ma"})
	if !errors.Is(err, errExecStubbed) {
		t.Fatalf("Main = %v, want the stubbed exec failure", err)
	}
	if len(project.execs) != 1 {
		t.Fatalf("exec called %d times", len(project.execs))
	}
	argv := project.execs[0]
	if argv[0] != filepath.Join(project.bin, "tool") || len(argv) != 2 || argv[1] != "scene.ma" {
		t.Errorf("argv = %q, want the tool with the forwarded argument only", argv)
	}
}

func TestLaunchHelp(t *testing.T) {
	project := newTestProject(t)
	err := Main(context.Background(), project.runtime(), []string{"stagehand", "launch", "tool", "---help"})
	if code := process.ExitCodeFor(err); code != process.ExitArgumentHandled {
		t.Errorf("exit code = %d (%v), want %d", code, err, process.ExitArgumentHandled)
	}
	if !strings.Contains(project.stdout.String(), "Launch tool through stagehand") {
		t.Errorf("help output:\n%s", project.stdout.String())
	}
	if len(project.execs) != 0 {
		t.Error("help launched the tool")
	}
}

func TestLaunchReadsStdin(t *testing.T) {
	project := newTestProject(t)
	runtime := project.runtime()
	runtime.Stdin = strings.NewReader("shot010\n\nshot020\n")
	err := Main(context.Background(), runtime, []string{"stagehand", "launch", "tool", "---read-stdin", "render"})
	if !errors.Is(err, errExecStubbed) {
		t.Fatalf("launch = %v", err)
	}
	got := strings.Join(project.execs[0][1:], " ")
	if got != "render shot010 shot020" {
		t.Errorf("arguments = %q", got)
	}
}

func TestLaunchArgumentError(t *testing.T) {
	project := newTestProject(t)
	err := Main(context.Background(), project.runtime(), []string{"/bin/tool", "---bogus"})
	var argumentErr *procctl.ArgumentError
	if !errors.As(err, &argumentErr) {
		t.Fatalf("error = %v, want *procctl.ArgumentError", err)
	}
	if code := process.ExitCodeFor(err); code != process.ExitArgumentError {
		t.Errorf("exit code = %d, want %d", code, process.ExitArgumentError)
	}
}

func TestResolveJSON(t *testing.T) {
	project := newTestProject(t)
	err := Root(project.runtime()).Execute(context.Background(), []string{"resolve", "--json", "tool", "-v"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var report resolveReport
	if err := json.Unmarshal(project.stdout.Bytes(), &report); err != nil {
		t.Fatalf("decoding %q: %v", project.stdout.String(), err)
	}
	if report.Executable != filepath.Join(project.bin, "tool") {
		t.Errorf("executable = %q", report.Executable)
	}
	if len(report.Arguments) != 1 || report.Arguments[0] != "-v" {
		t.Errorf("arguments = %q", report.Arguments)
	}
	if len(report.Packages) != 2 || report.Packages[0].Name != "lib" || report.Packages[1].Name != "tool" {
		t.Errorf("packages = %+v, want lib then tool", report.Packages)
	}
	if report.Delegate != procctl.DefaultDelegateName {
		t.Errorf("delegate = %q", report.Delegate)
	}
	if len(project.execs) != 0 {
		t.Error("resolve launched the tool")
	}
}

func TestEnvExport(t *testing.T) {
	project := newTestProject(t)
	err := Root(project.runtime()).Execute(context.Background(),
		[]string{"env", "--export", "tool", "---packages.lib.environment.variables.LIB_ROOT=/it's/here"})
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	output := project.stdout.String()
	for _, line := range []string{
		"export GREETING='hello'\n",
		`export LIB_ROOT='/it'\''s/here'` + "\n",
	} {
		if !strings.Contains(output, line) {
			t.Errorf("env output missing %q:\n%s", line, output)
		}
	}
}

func TestPackagesCommand(t *testing.T) {
	project := newTestProject(t)
	if err := Root(project.runtime()).Execute(context.Background(), []string{"packages", "tool"}); err != nil {
		t.Fatalf("packages: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(project.stdout.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "lib") || !strings.HasPrefix(lines[1], "tool") {
		t.Errorf("packages output:\n%s", project.stdout.String())
	}
	if !strings.Contains(lines[1], "requires lib") {
		t.Errorf("tool line %q does not list its requirement", lines[1])
	}
}

func TestUnknownCommand(t *testing.T) {
	project := newTestProject(t)
	err := Root(project.runtime()).Execute(context.Background(), []string{"packges"})
	var usage *cli.UsageError
	if !errors.As(err, &usage) || !strings.Contains(usage.Message, `"packages"`) {
		t.Errorf("error = %v, want a suggestion of packages", err)
	}
}

// launchEnviron resolves tool in project and returns the environment
// entries a launched child would receive.
func launchEnviron(t *testing.T, project *testProject) []string {
	t.Helper()
	runtime := project.runtime()
	s, err := runtime.openSession(&siteFlags{}, procctl.Options{})
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	args, err := procctl.ParseArguments([]string{"---tool.mode=batch"})
	if err != nil {
		t.Fatalf("ParseArguments: %v", err)
	}
	launch, err := s.controller.Plan("tool", args)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	variables, err := procctl.EncodeIntrospection(&procctl.Introspection{
		Settings: s.stack.Merged(),
		Process: procctl.ProcessInfo{
			Executable:      "tool",
			Package:         "tool",
			Packages:        launch.Packages.Refs(),
			LauncherVersion: version.Version,
		},
		Overrides: launch.Overrides,
		Files:     s.stack.Files(),
	}, procctl.IntrospectionOptions{Prefix: s.site.Introspection.Prefix}, nil)
	if err != nil {
		t.Fatalf("EncodeIntrospection: %v", err)
	}
	var environ []string
	for name, value := range variables {
		environ = append(environ, name+"="+value)
	}
	return environ
}

func TestInspect(t *testing.T) {
	project := newTestProject(t)
	environ := launchEnviron(t, project)

	err := Root(project.runtime(environ...)).Execute(context.Background(), []string{"inspect", "--json"})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var report inspectReport
	if err := json.Unmarshal(project.stdout.Bytes(), &report); err != nil {
		t.Fatalf("decoding %q: %v", project.stdout.String(), err)
	}
	if report.Process.Package != "tool" || len(report.Process.Packages) != 2 {
		t.Errorf("process = %+v", report.Process)
	}
	if tool, ok := report.Overrides["tool"].(map[string]any); !ok || tool["mode"] != "batch" {
		t.Errorf("overrides = %v", report.Overrides)
	}
	if len(report.Files) != 1 {
		t.Errorf("files = %v, want the one settings file", report.Files)
	}
}

func TestInspectWithoutLaunchState(t *testing.T) {
	project := newTestProject(t)
	err := Root(project.runtime()).Execute(context.Background(), []string{"inspect"})
	if err == nil || !strings.Contains(err.Error(), "STAGEHAND_PROCESS is not set") {
		t.Errorf("error = %v", err)
	}
}

func TestInspectCheck(t *testing.T) {
	project := newTestProject(t)
	environ := launchEnviron(t, project)

	if err := Root(project.runtime(environ...)).Execute(context.Background(), []string{"inspect", "--check"}); err != nil {
		t.Fatalf("check on unchanged settings: %v", err)
	}
	if !strings.Contains(project.stdout.String(), "tool resolves as at launch") {
		t.Errorf("output:\n%s", project.stdout.String())
	}

	project.stdout.Reset()
	testutil.WriteFile(t, project.root, "shows/demo/etc/packages.yaml",
		strings.Replace(projectSettings, "  lib:\n    version: \"1.0\"", "  lib:\n    version: \"2.0\"", 1))
	err := Root(project.runtime(environ...)).Execute(context.Background(), []string{"inspect", "--check"})
	if code := process.ExitCodeFor(err); code != process.ExitError {
		t.Errorf("exit code = %d (%v), want %d", code, err, process.ExitError)
	}
	for _, fragment := range []string{"-lib 1.0", "+lib 2.0"} {
		if !strings.Contains(project.stdout.String(), fragment) {
			t.Errorf("report missing %q:\n%s", fragment, project.stdout.String())
		}
	}
}

func TestInspectReportsLauncherSkew(t *testing.T) {
	project := newTestProject(t)
	environ := launchEnviron(t, project)
	recorded := version.Version

	saved := version.Version
	t.Cleanup(func() { version.Version = saved })
	version.Version = "99.0.0"

	if err := Root(project.runtime(environ...)).Execute(context.Background(), []string{"inspect"}); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	want := "launched by stagehand " + recorded + ", this is 99.0.0"
	if !strings.Contains(project.stdout.String(), want) {
		t.Errorf("output missing %q:\n%s", want, project.stdout.String())
	}
}
