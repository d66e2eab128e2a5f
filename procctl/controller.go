// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/bureau-foundation/stagehand/lib/config"
	"github.com/bureau-foundation/stagehand/lib/ctxstack"
	"github.com/bureau-foundation/stagehand/lib/process"
	"github.com/bureau-foundation/stagehand/lib/settings"
	"github.com/bureau-foundation/stagehand/lib/transaction"
	"github.com/bureau-foundation/stagehand/lib/tree"
	"github.com/bureau-foundation/stagehand/lib/version"
)

// Context names used by the controller.
const (
	CommandlineContextName = "commandline"
	SiteContextName        = "site"
	packageContextPrefix   = "package:"
)

// Config configures a [Controller].
type Config struct {
	// Stack receives the commandline and package contexts. Builtins
	// and site settings are expected below them already.
	Stack *ctxstack.Stack

	// Site is the launcher configuration. Nil means config.Default().
	Site *config.Config

	// Logger defaults to the stack's logger.
	Logger *slog.Logger

	// Environ is the launcher's environment as "NAME=value" entries.
	// Nil means os.Environ().
	Environ []string

	// Self is the launcher's own executable, skipped when searching
	// for the package executable.
	Self string

	// Exec replaces the process image in replace mode. Nil means the
	// platform exec.
	Exec ExecFunc
}

// Controller drives one launch through its states. It is not safe for
// concurrent use.
type Controller struct {
	stack   *ctxstack.Stack
	site    *config.Config
	logger  *slog.Logger
	environ []string
	self    string
	exec    ExecFunc

	state       State
	launch      *Launch
	commandline *ctxstack.Context
}

// NewController returns a controller in the Unresolved state.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Stack == nil {
		return nil, errors.New("procctl: controller needs a context stack")
	}
	site := cfg.Site
	if site == nil {
		site = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.Stack.Logger()
	}
	environ := cfg.Environ
	if environ == nil {
		environ = os.Environ()
	}
	execFunc := cfg.Exec
	if execFunc == nil {
		execFunc = replaceProcess
	}
	return &Controller{
		stack:   cfg.Stack,
		site:    site,
		logger:  logger,
		environ: environ,
		self:    cfg.Self,
		exec:    execFunc,
	}, nil
}

// State returns the launch state.
func (c *Controller) State() State {
	return c.state
}

// Launch returns the launch plan, or nil before Plan.
func (c *Controller) Launch() *Launch {
	return c.launch
}

// Plan resolves the package invoked as invoked (a package name, an
// alias, or a requirement with a version constraint) into a flattened
// package list. The overrides of args are pushed as the commandline
// context before packages are read, so they can change package
// declarations, and stay on top of every package context afterwards.
func (c *Controller) Plan(invoked string, args *ArgumentsResult) (_ *Launch, err error) {
	if c.state != Unresolved {
		return nil, fmt.Errorf("plan: launch is already %s", c.state)
	}
	size := c.stack.Len()
	defer func() {
		if err != nil {
			c.stack.Pop(size)
			c.commandline = nil
		}
	}()
	if args == nil {
		args = &ArgumentsResult{}
	}
	overrides := args.Overrides
	if overrides == nil {
		overrides = tree.New()
	}
	if args.Package != "" {
		invoked = args.Package
	}
	requested, err := ParseRequirement(invoked)
	if err != nil {
		return nil, &ArgumentError{Argument: invoked, Reason: err.Error()}
	}

	launch := &Launch{
		Invoked:    requested.Name,
		Constraint: requested.Constraint,
		Overrides:  overrides,
		Arguments:  args.Arguments,
		DryRun:     args.DryRun,
	}

	c.commandline = ctxstack.NewWithSettings(CommandlineContextName, overrides, LauncherSchema)
	if err := c.stack.Push(c.commandline); err != nil {
		return nil, err
	}

	packages, err := PackagesFrom(c.stack.Merged())
	if err != nil {
		return nil, err
	}
	root, err := packages.Root(requested.Name)
	if err != nil {
		return nil, err
	}
	if root.Name != requested.Name {
		c.logger.Debug("alias resolved", "alias", requested.Name, "package", root.Name)
	}

	flattened, err := Flatten(packages, root.Name+requested.Constraint, c.logger)
	if err != nil {
		return nil, err
	}
	launch.Root = flattened.Root
	launch.Packages = flattened

	for _, pkg := range flattened.Packages {
		pkgContext := ctxstack.NewWithSettings(packageContextPrefix+pkg.Name, pkg.Settings.Clone())
		if err := c.stack.Push(pkgContext); err != nil {
			return nil, err
		}
	}
	c.stack.Remove(c.commandline)
	if err := c.stack.Push(c.commandline); err != nil {
		return nil, err
	}

	delegateName := launch.Root.Delegate
	if delegateName == "" {
		delegateName = c.site.Process.DefaultDelegate
	}
	if launch.Delegate, err = c.delegate(delegateName); err != nil {
		return nil, err
	}

	c.launch = launch
	c.state = PackagesFlattened
	c.logger.Debug("packages flattened",
		"package", launch.Root.String(),
		"packages", flattened.Names(),
		"excluded", len(flattened.Excluded),
		"delegate", delegateName,
	)
	return launch, nil
}

// delegate returns the instance of the delegate type called name,
// creating it on first use.
func (c *Controller) delegate(name string) (Delegate, error) {
	types := ctxstack.StackTypes[Delegate](c.stack, ctxstack.NearestWins, func(typ *ctxstack.Type[Delegate]) bool {
		return typ.Name == name
	})
	if len(types) == 0 {
		var available []string
		for _, typ := range ctxstack.StackTypes[Delegate](c.stack, ctxstack.RecurseAlways, nil) {
			if !slices.Contains(available, typ.Name) {
				available = append(available, typ.Name)
			}
		}
		slices.Sort(available)
		return nil, &UnknownDelegateError{Name: name, Available: available}
	}
	typ := types[0]
	if instance, ok := ctxstack.Created(c.stack, typ); ok {
		return instance, nil
	}
	created, err := ctxstack.NewInstances(c.stack, func(s *ctxstack.Stack, candidate *ctxstack.Type[Delegate]) bool {
		return candidate == typ && ctxstack.CreateMissing(s, candidate)
	}, true)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("delegate %q was not created", name)
	}
	return created[0], nil
}

// Compose lets the delegate prepare the stack, then composes the child
// environment and resolves the executable, arguments and working
// directory.
func (c *Controller) Compose() (*Launch, error) {
	if c.state != PackagesFlattened {
		return nil, fmt.Errorf("compose: launch is %s, want %s", c.state, PackagesFlattened)
	}
	launch := c.launch
	delegate := launch.Delegate

	if err := delegate.PrepareContext(c.stack, launch); err != nil {
		return nil, fmt.Errorf("preparing context for %s: %w", launch.Root.Name, err)
	}
	launch.Settings = c.stack.Settings()

	base := NewEnvironment(c.site.InheritedEnvironment(c.environ))
	launcherEnvironment := MapEnviron(c.environ)
	packages := launch.Packages.Iter()
	for pkg, ok := packages.Next(); ok; pkg, ok = packages.Next() {
		for _, name := range pkg.Inherit {
			if value, ok := launcherEnvironment[name]; ok {
				base.Set(name, value)
			}
		}
	}
	prefix := c.site.Introspection.Prefix
	base.DropMatching(func(name string) bool {
		return IsIntrospectionVariable(name, prefix)
	})

	composition, err := ComposeEnvironment(delegate, base, launch.Packages.Packages, c.logger)
	if err != nil {
		return nil, err
	}
	launch.Environment = composition.Environment
	launch.Rejected = composition.Rejected
	for _, rejected := range composition.Rejected {
		c.logger.Debug("path rejected",
			"package", rejected.Package,
			"variable", rejected.Variable,
			"path", rejected.Path,
		)
	}

	env := launch.Environment
	launch.Dir = ExpandReferences(launch.Root.Cwd, env.Lookup)
	if launch.Dir == "" {
		if launch.Dir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
	}

	executable := ExpandReferences(launch.Root.ExecutableFor(launch.Invoked), env.Lookup)
	if launch.Executable, err = findExecutable(executable, env, launch.Dir, c.self); err != nil {
		return nil, err
	}

	var arguments []string
	for _, argument := range launch.Root.PrependArguments {
		arguments = append(arguments, ExpandReferences(argument, env.Lookup))
	}
	arguments = append(arguments, launch.Arguments...)
	for _, argument := range launch.Root.AppendArguments {
		arguments = append(arguments, ExpandReferences(argument, env.Lookup))
	}
	launch.Arguments = arguments

	c.state = EnvironmentComposed
	c.logger.Debug("environment composed",
		"package", launch.Root.Name,
		"variables", len(env.Names()),
		"blocked", len(composition.Blocked),
		"rejected", len(composition.Rejected),
		"executable", launch.Executable,
	)
	return launch, nil
}

// Resolve runs Plan and Compose.
func (c *Controller) Resolve(invoked string, args *ArgumentsResult) (*Launch, error) {
	if _, err := c.Plan(invoked, args); err != nil {
		return nil, err
	}
	return c.Compose()
}

// ApplyActions runs the actions referenced by every flattened package,
// in package order and then declaration order, as one transaction. On
// failure every applied action is rolled back and the launch stops in
// ActionsRolledBack.
func (c *Controller) ApplyActions(ctx context.Context) error {
	if c.state != EnvironmentComposed {
		return fmt.Errorf("apply actions: launch is %s, want %s", c.state, EnvironmentComposed)
	}
	launch := c.launch
	name := "setup " + launch.Root.Name
	tx := transaction.New(name, transaction.Config{
		DryRun:   launch.DryRun,
		Logger:   c.logger,
		Progress: transaction.NewLogProgress(c.logger, name),
	})
	launch.Actions = tx

	for _, pkg := range launch.Packages.Packages {
		for _, ref := range pkg.Actions {
			operation, err := c.buildAction(pkg, ref)
			if err != nil {
				c.state = ActionsRolledBack
				return err
			}
			if err := tx.Add(operation); err != nil {
				return err
			}
		}
	}

	if err := tx.Apply(ctx); err != nil {
		c.state = ActionsRolledBack
		return err
	}
	if !tx.Succeeded() {
		c.state = ActionsRolledBack
		return tx.Err()
	}
	c.state = ActionsApplied
	return nil
}

// buildAction resolves the declaration ref points at through the schema
// of the nearest registered action type of its kind.
func (c *Controller) buildAction(pkg *Package, ref ActionRef) (transaction.Operation, error) {
	actionType, ok := ctxstack.StackInstance[ActionType](c.stack, func(candidate ActionType) bool {
		return candidate.Type() == ref.Type
	})
	if !ok {
		return nil, &UnknownActionError{Ref: ref, Package: pkg.Name}
	}
	if _, declared := c.launch.Settings.Data().Lookup(ref.Key()); !declared {
		return nil, fmt.Errorf("package %s: action %s: %q: %w", pkg.Name, ref, ref.Key(), settings.ErrUnknownKey)
	}
	schema := &settings.Schema{Key: ref.Key(), Template: actionType.Template()}
	view, err := c.launch.Settings.Value(schema)
	if err != nil {
		return nil, fmt.Errorf("package %s: action %s: %w", pkg.Name, ref, err)
	}
	return actionType.Build(&ActionSpec{
		Ref:     ref,
		Package: pkg.Name,
		View:    view,
		Env:     c.launch.Environment,
	})
}

// Start writes the introspection variables and starts the executable
// in the delegate's launch mode. In dry-run mode nothing is started. In
// replace mode Start only returns on failure.
//
// A failure before the executable is running rolls the actions back
// and leaves the launch in ActionsRolledBack.
func (c *Controller) Start(ctx context.Context) error {
	if c.state != ActionsApplied {
		return fmt.Errorf("start: launch is %s, want %s", c.state, ActionsApplied)
	}
	err := c.start(ctx)
	if err != nil && c.state == ActionsApplied {
		return c.rollbackActions(ctx, err)
	}
	return err
}

// rollbackActions undoes the applied actions after cause stopped the
// launch.
func (c *Controller) rollbackActions(ctx context.Context, cause error) error {
	c.state = ActionsRolledBack
	if c.launch.Actions == nil {
		return cause
	}
	c.logger.Debug("rolling back actions", "package", c.launch.Root.Name, "error", cause)
	if err := c.launch.Actions.Rollback(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (c *Controller) start(ctx context.Context) error {
	launch := c.launch
	launch.Mode = launch.Delegate.LaunchMode(launch)

	launch.Process = ProcessInfo{
		Executable:   launch.Executable,
		PID:          os.Getpid(),
		BootstrapDir: c.bootstrapDir(),
		Package:      launch.Root.Name,
		Arguments:    launch.Arguments,
		Mode:         launch.Mode.String(),
		Packages:     launch.Packages.Refs(),

		LauncherVersion: version.Version,
	}
	for _, pkg := range launch.Packages.Packages {
		launch.Process.ImportModules = append(launch.Process.ImportModules, pkg.ImportModules...)
	}

	variables, err := EncodeIntrospection(&Introspection{
		Settings:  c.stack.Merged(),
		Process:   launch.Process,
		Overrides: launch.Overrides,
		Files:     c.stack.Files(),
	}, IntrospectionOptions{
		Prefix:    c.site.Introspection.Prefix,
		ChunkSize: c.site.Introspection.ChunkSize,
	}, launch.Environment.Map())
	if err != nil {
		return err
	}
	for name, value := range variables {
		launch.Environment.Set(name, value)
	}

	if err := launch.Delegate.PreStart(launch); err != nil {
		return fmt.Errorf("pre-start of %s: %w", launch.Root.Name, err)
	}

	if launch.DryRun {
		c.logger.Info("dry run, not launching",
			"executable", launch.Executable,
			"mode", launch.Mode.String(),
		)
		return nil
	}

	switch launch.Mode {
	case Replace:
		c.state = Replaced
		err := c.exec(launch.Executable, launch.Argv(), launch.Environment.Environ())
		c.state = ActionsApplied
		return fmt.Errorf("replacing process with %s: %w", launch.Executable, err)
	case Spawn:
		return c.spawn(ctx)
	case Sibling:
		return c.sibling()
	default:
		return fmt.Errorf("unsupported launch mode %s", launch.Mode)
	}
}

func (c *Controller) command() *exec.Cmd {
	launch := c.launch
	cmd := exec.Command(launch.Executable, launch.Arguments...)
	cmd.Env = launch.Environment.Environ()
	cmd.Dir = launch.Dir
	return cmd
}

func (c *Controller) spawn(ctx context.Context) error {
	launch := c.launch
	child, err := launch.Delegate.ProcessFileDescriptors(launch, c.command())
	if err != nil {
		return err
	}
	if err := child.Cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", launch.Executable, err)
	}
	c.state = SpawnedRunning
	c.logger.Debug("child started", "executable", launch.Executable, "pid", child.Cmd.Process.Pid)

	communicateErr := launch.Delegate.Communicate(ctx, launch, child)
	child.Drain()
	waitErr := child.Cmd.Wait()
	c.state = SpawnedDone

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by a signal.
			code = process.ExitError
		}
		return &ChildExitError{Executable: launch.Executable, Code: code}
	}
	if waitErr != nil {
		return fmt.Errorf("waiting for %s: %w", launch.Executable, waitErr)
	}
	return communicateErr
}

func (c *Controller) sibling() error {
	launch := c.launch
	cmd := c.command()
	cmd.SysProcAttr = siblingAttributes()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", launch.Executable, err)
	}
	pid := cmd.Process.Pid
	c.state = Detached
	if err := cmd.Process.Release(); err != nil {
		return err
	}
	c.logger.Info("sibling started", "executable", launch.Executable, "pid", pid)
	return nil
}

func (c *Controller) bootstrapDir() string {
	if c.self == "" {
		return ""
	}
	return filepath.Dir(c.self)
}

// Run resolves, applies actions and starts the package invoked as
// invoked.
func (c *Controller) Run(ctx context.Context, invoked string, args *ArgumentsResult) error {
	if _, err := c.Resolve(invoked, args); err != nil {
		return err
	}
	if err := c.ApplyActions(ctx); err != nil {
		return err
	}
	return c.Start(ctx)
}

// LoadSettings pushes a site context built from the configuration
// directories above roots (site.Search.Roots when roots is empty).
func LoadSettings(stack *ctxstack.Stack, site *config.Config, roots []string) (*ctxstack.Context, error) {
	if len(roots) == 0 {
		roots = site.Search.Roots
	}
	platform, err := site.Platform()
	if err != nil {
		return nil, err
	}
	siteContext, err := ctxstack.NewHierarchical(stack, SiteContextName, roots, ctxstack.HierarchicalOptions{
		DirectoryName: site.Search.Directory,
		Platform:      platform,
	})
	if err != nil {
		return nil, err
	}
	if err := stack.Push(siteContext); err != nil {
		return nil, err
	}
	return siteContext, nil
}
