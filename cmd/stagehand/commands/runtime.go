// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/stagehand/cmd/stagehand/cli"
	"github.com/bureau-foundation/stagehand/lib/config"
	"github.com/bureau-foundation/stagehand/lib/ctxstack"
	"github.com/bureau-foundation/stagehand/procctl"
)

// BuiltinsContextName is the bottom context of every stack the CLI
// creates.
const BuiltinsContextName = "builtins"

// Runtime is the process environment commands run in. Tests substitute
// streams, environment and the exec function.
type Runtime struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Environ is the launcher's environment. Nil means os.Environ().
	Environ []string

	// Self is the launcher's own executable path.
	Self string

	// Exec replaces the process in replace mode. Nil means the
	// platform exec.
	Exec procctl.ExecFunc

	// Logger, when set, is used instead of a logger built from the
	// configured level.
	Logger *slog.Logger
}

// DefaultRuntime returns the runtime of the current process.
func DefaultRuntime() *Runtime {
	self, err := os.Executable()
	if err != nil {
		self = ""
	}
	return &Runtime{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Self:   self,
	}
}

func (r *Runtime) environ() []string {
	if r.Environ == nil {
		return os.Environ()
	}
	return r.Environ
}

func (r *Runtime) lookupEnv(name string) (string, bool) {
	value, ok := procctl.MapEnviron(r.environ())[name]
	return value, ok
}

// siteFlags are the flags every resolving command accepts.
type siteFlags struct {
	configPath string
	roots      []string
}

func (f *siteFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "launcher config file (default $"+config.EnvironmentVariable+")")
	flagSet.StringSliceVar(&f.roots, "root", nil, "directory to search for configuration above (repeatable; default search.roots, else the working directory)")
}

// loadSite reads the launcher configuration from the --config flag,
// else from the file named by STAGEHAND_CONFIG, else the defaults.
func (r *Runtime) loadSite(flags *siteFlags) (*config.Config, error) {
	path := flags.configPath
	if path == "" {
		path, _ = r.lookupEnv(config.EnvironmentVariable)
	}
	site := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading launcher config: %w", err)
		}
		site = loaded
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("invalid launcher config: %w", err)
	}
	return site, nil
}

// session is one resolved launcher setup: site configuration, logger
// and the default context stack.
type session struct {
	runtime    *Runtime
	site       *config.Config
	logger     *slog.Logger
	stack      *ctxstack.Stack
	controller *procctl.Controller
}

// openSession loads the site configuration and builds the default
// stack and a controller on it. options raises the log level for
// "---debug" and "---trace".
func (r *Runtime) openSession(flags *siteFlags, options procctl.Options) (*session, error) {
	site, err := r.loadSite(flags)
	if err != nil {
		return nil, err
	}

	logger := r.Logger
	if logger == nil {
		level, err := cli.ParseLevel(site.Log.Level)
		if err != nil {
			return nil, err
		}
		switch {
		case options.Trace:
			level = cli.LevelTrace
		case options.Debug:
			level = min(level, slog.LevelDebug)
		}
		logger = cli.NewLogger(r.Stderr, level)
	}

	stack := ctxstack.NewStack(logger)
	builtins := stack.PushNew(BuiltinsContextName)
	if err := procctl.RegisterBuiltins(builtins, procctl.BuiltinOptions{
		Logger:     logger,
		Identities: site.Process.Identities,
		Stdin:      r.Stdin,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
	}); err != nil {
		return nil, err
	}
	roots := flags.roots
	if len(roots) == 0 && len(site.Search.Roots) == 0 {
		if wd, err := os.Getwd(); err == nil {
			roots = []string{wd}
		}
	}
	if _, err := procctl.LoadSettings(stack, site, roots); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	controller, err := procctl.NewController(procctl.Config{
		Stack:   stack,
		Site:    site,
		Logger:  logger,
		Environ: r.environ(),
		Self:    r.Self,
		Exec:    r.Exec,
	})
	if err != nil {
		return nil, err
	}
	return &session{
		runtime:    r,
		site:       site,
		logger:     logger,
		stack:      stack,
		controller: controller,
	}, nil
}
