// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/stagehand/lib/ctxstack"
	"github.com/bureau-foundation/stagehand/lib/process"
	"github.com/bureau-foundation/stagehand/lib/testutil"
	"github.com/bureau-foundation/stagehand/lib/transaction"
	"github.com/bureau-foundation/stagehand/lib/tree"
)

// newTestStack returns a stack holding the builtins and a site context
// with the settings in source.
func newTestStack(t *testing.T, source string, options BuiltinOptions) *ctxstack.Stack {
	t.Helper()
	stack := ctxstack.NewStack(nil)
	builtins := ctxstack.New("builtins")
	if err := RegisterBuiltins(builtins, options); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	if err := stack.Push(builtins); err != nil {
		t.Fatalf("Push(builtins): %v", err)
	}
	parsed, err := tree.ParseYAML([]byte(source))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if err := stack.Push(ctxstack.NewWithSettings(SiteContextName, parsed)); err != nil {
		t.Fatalf("Push(site): %v", err)
	}
	return stack
}

func newTestController(t *testing.T, source string, options BuiltinOptions, environ []string) *Controller {
	t.Helper()
	controller, err := NewController(Config{
		Stack:   newTestStack(t, source, options),
		Environ: environ,
		Exec: func(argv0 string, argv []string, envv []string) error {
			t.Fatalf("unexpected exec of %s", argv0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return controller
}

// execRecorder stands in for the process exec in replace mode.
type execRecorder struct {
	argv0 string
	argv  []string
	envv  []string
}

var errExecStubbed = errors.New("exec stubbed")

func (r *execRecorder) exec(argv0 string, argv []string, envv []string) error {
	r.argv0, r.argv, r.envv = argv0, argv, envv
	return errExecStubbed
}

func TestControllerSpawn(t *testing.T) {
	dir := t.TempDir()
	testutil.Executable(t, dir, "tool", `
echo "arg=$1"
echo "PROGRESS: 50%"
echo "greeting=$GREETING"
echo "warning" >&2
test -n "$STAGEHAND_PROCESS" && echo "introspected"
exit 0`)

	var stdout, stderr bytes.Buffer
	controller := newTestController(t, `
packages:
  tool:
    environment:
      variables:
        PATH:
          prepend: `+dir+`
        GREETING: hello
    settings:
      stagehand:
        launch_mode: spawn
`, BuiltinOptions{Stdout: &stdout, Stderr: &stderr}, []string{"PATH=/usr/bin:/bin"})

	err := controller.Run(context.Background(), "tool", &ArgumentsResult{Arguments: []string{"one"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if controller.State() != SpawnedDone {
		t.Errorf("State = %s, want %s", controller.State(), SpawnedDone)
	}

	launch := controller.Launch()
	if launch.Executable != filepath.Join(dir, "tool") {
		t.Errorf("Executable = %q", launch.Executable)
	}
	want := "arg=one\ngreeting=hello\nintrospected\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if stderr.String() != "warning\n" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "warning\n")
	}
}

func TestControllerSpawnFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "exit status",
			script: "exit 3",
			check: func(t *testing.T, err error) {
				var exitErr *ChildExitError
				if !errors.As(err, &exitErr) || exitErr.Code != 3 {
					t.Fatalf("error = %v, want *ChildExitError with code 3", err)
				}
				if code := process.ExitCodeFor(err); code != 3 {
					t.Errorf("ExitCodeFor = %d, want 3", code)
				}
			},
		},
		{
			name:   "fatal line",
			script: "echo 'FATAL: license unavailable'\nexit 0",
			check: func(t *testing.T, err error) {
				var fatal *FatalOutputError
				if !errors.As(err, &fatal) || fatal.Line != "FATAL: license unavailable" {
					t.Fatalf("error = %v, want *FatalOutputError", err)
				}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			executable := testutil.Executable(t, dir, "tool", test.script)
			var output bytes.Buffer
			controller := newTestController(t, `
stagehand:
  launch_mode: spawn
packages:
  tool:
    executable: `+executable+`
`, BuiltinOptions{Stdout: &output, Stderr: &output}, []string{})

			test.check(t, controller.Run(context.Background(), "tool", nil))
			if controller.State() != SpawnedDone {
				t.Errorf("State = %s, want %s", controller.State(), SpawnedDone)
			}
		})
	}
}

func TestControllerReplace(t *testing.T) {
	dir := t.TempDir()
	executable := testutil.Executable(t, dir, "maya.bin", "exit 0")

	recorder := &execRecorder{}
	controller, err := NewController(Config{
		Stack: newTestStack(t, `
packages:
  python:
    version: "3.11"
  maya:
    version: "2024.2"
    requires: ["python>=3.10"]
    executable_alias:
      mayapy: `+executable+`
    arguments:
      prepend: [-proj, "{SHOW}"]
    environment:
      variables:
        SHOW: demo
      import_modules: [maya_startup]
`, BuiltinOptions{}),
		Environ: []string{"HOME=/home/artist", "STAGEHAND_PROCESS=stale"},
		Self:    "/opt/stagehand/bin/stagehand",
		Exec:    recorder.exec,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	args, err := ParseArguments([]string{"scene.ma", "---render.threads=8"})
	if err != nil {
		t.Fatalf("ParseArguments: %v", err)
	}
	err = controller.Run(context.Background(), "mayapy", args)
	if !errors.Is(err, errExecStubbed) {
		t.Fatalf("Run error = %v, want the exec error", err)
	}

	if recorder.argv0 != executable {
		t.Errorf("argv0 = %q, want %q", recorder.argv0, executable)
	}
	if want := []string{executable, "-proj", "demo", "scene.ma"}; !reflect.DeepEqual(recorder.argv, want) {
		t.Errorf("argv = %q, want %q", recorder.argv, want)
	}

	environ := MapEnviron(recorder.envv)
	if environ["HOME"] != "/home/artist" || environ["SHOW"] != "demo" {
		t.Errorf("environment = %v", environ)
	}
	lookup := func(name string) (string, bool) {
		value, ok := environ[name]
		return value, ok
	}
	state, err := ReadIntrospection(lookup, "STAGEHAND_")
	if err != nil {
		t.Fatalf("ReadIntrospection: %v", err)
	}
	if state.Process.Package != "maya" || state.Process.Mode != "replace" || state.Process.BootstrapDir != "/opt/stagehand/bin" {
		t.Errorf("process info = %+v", state.Process)
	}
	if want := []string{"maya_startup"}; !reflect.DeepEqual(state.Process.ImportModules, want) {
		t.Errorf("ImportModules = %v, want %v", state.Process.ImportModules, want)
	}
	if len(state.Process.Packages) != 2 || state.Process.Packages[1].Name != "maya" {
		t.Errorf("Packages = %+v", state.Process.Packages)
	}
	if got, _ := state.Settings.Lookup("packages.maya.version"); got != "2024.2" {
		t.Errorf("settings packages.maya.version = %#v", got)
	}
	if got, _ := state.Overrides.Lookup("render.threads"); got != int64(8) {
		t.Errorf("overrides render.threads = %#v", got)
	}
}

func TestControllerDryRun(t *testing.T) {
	dir := t.TempDir()
	executable := testutil.Executable(t, dir, "tool", "exit 0")
	cache := filepath.Join(dir, "cache")

	controller := newTestController(t, `
actions:
  mkdir:
    cache:
      path: `+cache+`
packages:
  tool:
    executable: `+executable+`
    actions: [mkdir.cache]
`, BuiltinOptions{}, []string{})

	if err := controller.Run(context.Background(), "tool", &ArgumentsResult{Options: Options{DryRun: true}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if controller.State() != ActionsApplied {
		t.Errorf("State = %s, want %s", controller.State(), ActionsApplied)
	}
	if _, err := os.Stat(cache); !os.IsNotExist(err) {
		t.Errorf("dry run created %s (stat error %v)", cache, err)
	}
}

func TestControllerActionsRollBack(t *testing.T) {
	dir := t.TempDir()
	executable := testutil.Executable(t, dir, "tool", "exit 0")
	cache := filepath.Join(dir, "cache", "renders")

	controller := newTestController(t, `
actions:
  mkdir:
    cache:
      path: "{CACHE_ROOT}/renders"
  copy:
    config:
      source: `+filepath.Join(dir, "missing.yaml")+`
      destination: "{CACHE_ROOT}/config.yaml"
packages:
  tool:
    executable: `+executable+`
    environment:
      variables:
        CACHE_ROOT: `+filepath.Join(dir, "cache")+`
    actions: [mkdir.cache, copy.config]
`, BuiltinOptions{}, []string{})

	err := controller.Run(context.Background(), "tool", nil)
	if err == nil {
		t.Fatal("Run succeeded with a missing copy source")
	}
	var operationErr *transaction.OperationError
	if !errors.As(err, &operationErr) {
		t.Errorf("error = %v, want *transaction.OperationError", err)
	}
	if controller.State() != ActionsRolledBack {
		t.Errorf("State = %s, want %s", controller.State(), ActionsRolledBack)
	}
	if _, err := os.Stat(cache); !os.IsNotExist(err) {
		t.Errorf("%s survived rollback (stat error %v)", cache, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache")); !os.IsNotExist(err) {
		t.Errorf("parent created by the action survived rollback (stat error %v)", err)
	}
}

func TestControllerResolutionErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		check  func(t *testing.T, err error)
	}{
		{
			name: "unknown delegate",
			source: `
packages:
  tool:
    delegate: houdini
`,
			check: func(t *testing.T, err error) {
				var delegateErr *UnknownDelegateError
				if !errors.As(err, &delegateErr) {
					t.Fatalf("error = %v, want *UnknownDelegateError", err)
				}
				if !slices.Equal(delegateErr.Available, []string{DefaultDelegateName}) {
					t.Errorf("Available = %v", delegateErr.Available)
				}
			},
		},
		{
			name: "unknown action type",
			source: `
actions:
  teleport:
    away: {}
packages:
  tool:
    executable: /bin/sh
    actions: [teleport.away]
`,
			check: func(t *testing.T, err error) {
				var actionErr *UnknownActionError
				if !errors.As(err, &actionErr) || actionErr.Package != "tool" {
					t.Fatalf("error = %v, want *UnknownActionError for tool", err)
				}
			},
		},
		{
			name: "missing required action value",
			source: `
actions:
  mkdir:
    nowhere:
      mode: "0755"
packages:
  tool:
    executable: /bin/sh
    actions: [mkdir.nowhere]
`,
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "actions.mkdir.nowhere.path") {
					t.Fatalf("error = %v, want a missing actions.mkdir.nowhere.path", err)
				}
			},
		},
		{
			name: "executable not found",
			source: `
packages:
  tool:
    executable: definitely-not-installed
`,
			check: func(t *testing.T, err error) {
				var notFound *ExecutableNotFoundError
				if !errors.As(err, &notFound) {
					t.Fatalf("error = %v, want *ExecutableNotFoundError", err)
				}
				if want := []string{"/nowhere/definitely-not-installed"}; !slices.Equal(notFound.Candidates, want) {
					t.Errorf("Candidates = %v, want %v", notFound.Candidates, want)
				}
				if code := process.ExitCodeFor(err); code != process.ExitFileError {
					t.Errorf("ExitCodeFor = %d, want %d", code, process.ExitFileError)
				}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			controller := newTestController(t, test.source, BuiltinOptions{}, []string{"PATH=/nowhere"})
			test.check(t, controller.Run(context.Background(), "tool", nil))
			if controller.State().Launched() {
				t.Errorf("State = %s after a failed launch", controller.State())
			}
		})
	}
}

func TestControllerOverridesWinOverPackages(t *testing.T) {
	dir := t.TempDir()
	executable := testutil.Executable(t, dir, "tool", "exit 0")

	controller := newTestController(t, `
packages:
  tool:
    executable: `+executable+`
    environment:
      variables:
        GREETING: hello
    settings:
      stagehand:
        launch_mode: spawn
`, BuiltinOptions{}, []string{})

	args, err := ParseArguments([]string{
		"---packages.tool.environment.variables.GREETING=hi",
		"---stagehand.launch_mode=sibling",
	})
	if err != nil {
		t.Fatalf("ParseArguments: %v", err)
	}
	launch, err := controller.Resolve("tool", args)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := launch.Environment.Get("GREETING"); got != "hi" {
		t.Errorf("GREETING = %q, want hi", got)
	}
	if mode := launch.Delegate.LaunchMode(launch); mode != Sibling {
		t.Errorf("LaunchMode = %s, want %s", mode, Sibling)
	}

	var names []string
	for _, c := range controller.stack.Contexts() {
		names = append(names, c.Name())
	}
	want := []string{"builtins", SiteContextName, "package:tool", CommandlineContextName}
	if !slices.Equal(names, want) {
		t.Errorf("contexts = %v, want %v", names, want)
	}
}

func TestControllerStateOrder(t *testing.T) {
	controller := newTestController(t, "packages: {tool: {}}\n", BuiltinOptions{}, []string{})
	if _, err := controller.Compose(); err == nil {
		t.Error("Compose before Plan succeeded")
	}
	if err := controller.ApplyActions(context.Background()); err == nil {
		t.Error("ApplyActions before Compose succeeded")
	}
	if err := controller.Start(context.Background()); err == nil {
		t.Error("Start before ApplyActions succeeded")
	}
	if _, err := controller.Plan("tool", nil); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, err := controller.Plan("tool", nil); err == nil {
		t.Error("second Plan succeeded")
	}
}

func TestControllerStartFailureRollsBackActions(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		before func(t *testing.T, executable string)
	}{
		{
			name: "replace exec returns",
			mode: "replace",
		},
		{
			name: "spawn cannot start",
			mode: "spawn",
			before: func(t *testing.T, executable string) {
				if err := os.Remove(executable); err != nil {
					t.Fatalf("Remove: %v", err)
				}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			executable := testutil.Executable(t, dir, "tool", "exit 0")
			scratch := filepath.Join(dir, "scratch")

			recorder := &execRecorder{}
			controller, err := NewController(Config{
				Stack: newTestStack(t, `
stagehand:
  launch_mode: `+test.mode+`
actions:
  mkdir:
    scratch:
      path: `+scratch+`
packages:
  tool:
    executable: `+executable+`
    actions: [mkdir.scratch]
`, BuiltinOptions{}),
				Environ: []string{},
				Exec:    recorder.exec,
			})
			if err != nil {
				t.Fatalf("NewController: %v", err)
			}

			if _, err := controller.Resolve("tool", nil); err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if err := controller.ApplyActions(context.Background()); err != nil {
				t.Fatalf("ApplyActions: %v", err)
			}
			if _, err := os.Stat(scratch); err != nil {
				t.Fatalf("action did not create %s: %v", scratch, err)
			}
			if test.before != nil {
				test.before(t, executable)
			}

			if err := controller.Start(context.Background()); err == nil {
				t.Fatal("Start succeeded")
			}
			if controller.State() != ActionsRolledBack {
				t.Errorf("State = %s, want %s", controller.State(), ActionsRolledBack)
			}
			if _, err := os.Stat(scratch); !os.IsNotExist(err) {
				t.Errorf("%s survived the failed launch (stat error %v)", scratch, err)
			}
		})
	}
}

func TestControllerPlanFailureRestoresStack(t *testing.T) {
	tests := []struct {
		name    string
		invoked string
	}{
		{name: "unknown package", invoked: "nosuch"},
		{name: "requirement cycle", invoked: "a"},
		{name: "unknown delegate", invoked: "odd"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			controller := newTestController(t, `
packages:
  a:
    requires: [b]
  b:
    requires: [a]
  odd:
    delegate: nosuch
`, BuiltinOptions{}, []string{})
			before := controller.stack.Len()

			if _, err := controller.Plan(test.invoked, nil); err == nil {
				t.Fatal("Plan succeeded")
			}
			if after := controller.stack.Len(); after != before {
				t.Errorf("stack length = %d after failed Plan, want %d", after, before)
			}
			if controller.State() != Unresolved {
				t.Errorf("State = %s, want %s", controller.State(), Unresolved)
			}
		})
	}
}

func TestControllerSpawnCancelledDoesNotBlockOnOutput(t *testing.T) {
	dir := t.TempDir()
	executable := testutil.Executable(t, dir, "tool", "head -c 1048576 /dev/zero\nexit 0")

	var output bytes.Buffer
	controller := newTestController(t, `
stagehand:
  launch_mode: spawn
packages:
  tool:
    executable: `+executable+`
`, BuiltinOptions{Stdout: &output, Stderr: &output}, []string{})

	if _, err := controller.Resolve("tool", nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := controller.ApplyActions(context.Background()); err != nil {
		t.Fatalf("ApplyActions: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- controller.Start(ctx) }()

	err := testutil.RequireReceive(t, done, 10*time.Second, "Start did not return after cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Start error = %v, want context.Canceled", err)
	}
	if controller.State() != SpawnedDone {
		t.Errorf("State = %s, want %s", controller.State(), SpawnedDone)
	}
}
