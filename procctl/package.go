// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/bureau-foundation/stagehand/lib/settings"
	"github.com/bureau-foundation/stagehand/lib/tree"
	"github.com/bureau-foundation/stagehand/lib/treediff"
)

// Settings keys holding package and action declarations.
const (
	PackagesKey = "packages"
	ActionsKey  = "actions"
)

// packageSchema declares the keys of one package block.
var packageSchema = settings.NewSchema("", map[string]any{
	"version":          "",
	"requires":         []any{},
	"exclude":          []any{},
	"executable":       "",
	"executable_alias": map[string]any{},
	"cwd":              "",
	"delegate":         "",
	"arguments": map[string]any{
		"prepend": []any{},
		"append":  []any{},
	},
	"environment": map[string]any{
		"variables":      map[string]any{},
		"python_paths":   []any{},
		"import_modules": []any{},
		"inherit":        []any{},
	},
	"actions":  []any{},
	"settings": map[string]any{},
})

// Package is one resolved package declaration.
type Package struct {
	Name     string
	Version  string
	Requires []Requirement
	// Exclude names packages that must not be placed once this package
	// has been visited.
	Exclude []string
	// Excluded is set by "exclude: true": the package is never placed
	// as a requirement of another package.
	Excluded bool

	// Executable is run when this package is the root. Empty means the
	// package name.
	Executable string
	// Aliases map invocation names to alternative executables.
	Aliases []Alias
	Cwd     string
	// Delegate names the registered delegate type driving a launch of
	// this package.
	Delegate string

	PrependArguments []string
	AppendArguments  []string

	// Variables holds the raw environment directives, lock markers
	// intact.
	Variables     *tree.Tree
	PythonPaths   []string
	ImportModules []string
	// Inherit lists variables copied from the launcher's environment
	// regardless of the site inherit policy.
	Inherit []string

	Actions []ActionRef

	// Settings is pushed as the package's context, lock markers intact.
	Settings *tree.Tree
}

// Alias is an alternative invocation name of a package.
type Alias struct {
	Name       string
	Executable string
}

// ParsePackage reads a package block. node may carry lock markers; they
// are kept in Variables and Settings and stripped everywhere else.
func ParsePackage(name string, node *tree.Tree) (*Package, error) {
	if !packageNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid package name %q", name)
	}
	for _, key := range node.Keys() {
		if !packageSchema.Template.Has(key) {
			return nil, fmt.Errorf("package %s: %q: %w", name, key, settings.ErrUnknownKey)
		}
	}

	pkg := &Package{Name: name}
	stripped := treediff.StripTreeLocks(node)
	if value, ok := stripped.Get("exclude"); ok {
		if flag, isFlag := value.(bool); isFlag {
			pkg.Excluded = flag
			stripped.Delete("exclude")
		}
	}

	view, err := settings.NewProvider(stripped).Value(packageSchema)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", name, err)
	}

	var errs fieldErrors
	pkg.Version = errs.string(view, "version")
	pkg.Executable = errs.string(view, "executable")
	pkg.Cwd = errs.string(view, "cwd")
	pkg.Delegate = errs.string(view, "delegate")
	pkg.Exclude = errs.strings(view, "exclude")
	pkg.PrependArguments = errs.strings(view, "arguments.prepend")
	pkg.AppendArguments = errs.strings(view, "arguments.append")
	pkg.PythonPaths = errs.strings(view, "environment.python_paths")
	pkg.ImportModules = errs.strings(view, "environment.import_modules")
	pkg.Inherit = errs.strings(view, "environment.inherit")

	for _, text := range errs.strings(view, "requires") {
		requirement, err := ParseRequirement(text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pkg.Requires = append(pkg.Requires, requirement)
	}

	for _, text := range errs.strings(view, "actions") {
		ref, err := ParseActionRef(text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pkg.Actions = append(pkg.Actions, ref)
	}

	if aliases, err := view.Sub("executable_alias"); err != nil {
		errs = append(errs, err)
	} else {
		// Alias names may contain dots, so read the level directly
		// instead of through dotted lookups.
		aliasTree := aliases.Tree()
		for _, alias := range aliasTree.Keys() {
			value, _ := aliasTree.Get(alias)
			executable, ok := value.(string)
			if !ok {
				errs = append(errs, &settings.TypeError{
					Key:   "executable_alias." + alias,
					Want:  settings.KindString,
					Value: value,
				})
				continue
			}
			pkg.Aliases = append(pkg.Aliases, Alias{Name: alias, Executable: executable})
		}
	}

	pkg.Variables = rawSubtree(node, "environment.variables")
	pkg.Settings = rawSubtree(node, "settings")

	if len(errs) > 0 {
		return nil, fmt.Errorf("package %s: %w", name, errs.join())
	}
	return pkg, nil
}

// rawSubtree copies the subtree at path, or returns an empty tree.
func rawSubtree(node *tree.Tree, path string) *tree.Tree {
	subtree, ok := node.Subtree(path)
	if !ok {
		return tree.New()
	}
	return subtree.Clone()
}

// ExecutableFor returns the executable to run when the package is
// invoked as name: an alias target, the declared executable, or the
// package name.
func (p *Package) ExecutableFor(name string) string {
	for _, alias := range p.Aliases {
		if alias.Name == name {
			return alias.Executable
		}
	}
	if p.Executable != "" {
		return p.Executable
	}
	return p.Name
}

func (p *Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "-" + p.Version
}

var packageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-]*$`)

// Requirement is a package name with an optional version constraint.
type Requirement struct {
	Name string
	// Constraint is the constraint as written, such as ">=3.9 <4".
	Constraint string

	allows semver.Range
}

// ParseRequirement parses "name", "name==3.10" or "name>=3.9 <4".
// Versions in constraints may omit minor and patch numbers.
func ParseRequirement(text string) (Requirement, error) {
	text = strings.TrimSpace(text)
	end := strings.IndexAny(text, "=<>! ")
	if end < 0 {
		end = len(text)
	}
	requirement := Requirement{
		Name:       text[:end],
		Constraint: strings.TrimSpace(text[end:]),
	}
	if !packageNamePattern.MatchString(requirement.Name) {
		return Requirement{}, fmt.Errorf("requirement %q: invalid package name", text)
	}
	if requirement.Constraint == "" {
		return requirement, nil
	}

	allows, err := semver.ParseRange(normalizeConstraint(requirement.Constraint))
	if err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", text, err)
	}
	requirement.allows = allows
	return requirement, nil
}

var comparatorPattern = regexp.MustCompile(`^(==|=|!=|>=|<=|>|<|!)?(.*)$`)

// normalizeConstraint pads every version in a constraint to three
// components and joins comparators to their versions, so that
// ">= 3.9 <4" becomes ">=3.9.0 <4.0.0".
func normalizeConstraint(constraint string) string {
	var fields []string
	pending := ""
	for _, field := range strings.Fields(constraint) {
		if field == "||" {
			fields = append(fields, field)
			continue
		}
		if comparatorPattern.FindStringSubmatch(field)[2] == "" {
			pending += field
			continue
		}
		fields = append(fields, pending+field)
		pending = ""
	}

	for index, field := range fields {
		if field == "||" {
			continue
		}
		match := comparatorPattern.FindStringSubmatch(field)
		fields[index] = match[1] + padVersion(match[2])
	}
	return strings.Join(fields, " ")
}

// padVersion completes "3" or "3.9" to "3.9.0". Suffixes after a "-" or
// "+" are kept.
func padVersion(version string) string {
	if strings.ContainsAny(version, "xX*") {
		// Wildcards are expanded by the range parser.
		return version
	}
	core, suffix := version, ""
	if cut := strings.IndexAny(version, "-+"); cut >= 0 {
		core, suffix = version[:cut], version[cut:]
	}
	core = strings.TrimPrefix(core, "v")
	for strings.Count(core, ".") < 2 {
		core += ".0"
	}
	return core + suffix
}

// Allows reports whether version satisfies the constraint. A
// requirement without a constraint allows every version, including an
// undeclared one.
func (r Requirement) Allows(version string) (bool, error) {
	if r.allows == nil {
		return true, nil
	}
	if version == "" {
		return false, fmt.Errorf("package %s declares no version", r.Name)
	}
	parsed, err := semver.ParseTolerant(version)
	if err != nil {
		return false, fmt.Errorf("package %s version %q: %w", r.Name, version, err)
	}
	return r.allows(parsed), nil
}

func (r Requirement) String() string {
	return r.Name + r.Constraint
}

// ActionRef names an action declared under actions.<type>.<name>.
type ActionRef struct {
	Type string
	Name string
}

// ParseActionRef parses "type.name".
func ParseActionRef(text string) (ActionRef, error) {
	actionType, name, ok := strings.Cut(text, tree.Separator)
	if !ok || actionType == "" || name == "" || strings.Contains(name, tree.Separator) {
		return ActionRef{}, fmt.Errorf("action reference %q: expected <type>.<name>", text)
	}
	return ActionRef{Type: actionType, Name: name}, nil
}

// Key returns the settings key of the action declaration.
func (r ActionRef) Key() string {
	return tree.JoinPath(ActionsKey, r.Type, r.Name)
}

func (r ActionRef) String() string {
	return r.Type + tree.Separator + r.Name
}

// Packages reads package declarations from a settings tree.
type Packages struct {
	declarations *tree.Tree
	parsed       map[string]*Package
}

// PackagesFrom returns the packages declared under "packages" in
// merged. merged should be the lock-preserving merge of a stack
// ([ctxstack.Stack.Merged]) so that environment locks survive.
func PackagesFrom(merged *tree.Tree) (*Packages, error) {
	declarations := tree.New()
	if node, ok := merged.Lookup(PackagesKey); ok {
		subtree, isTree := node.(*tree.Tree)
		if !isTree {
			return nil, &settings.TypeError{Key: PackagesKey, Want: settings.KindTree, Value: node}
		}
		declarations = subtree.Clone()
	}
	return &Packages{declarations: declarations, parsed: make(map[string]*Package)}, nil
}

// Lookup returns the parsed declaration of name.
func (p *Packages) Lookup(name string) (*Package, error) {
	if pkg, ok := p.parsed[name]; ok {
		return pkg, nil
	}
	node, ok := p.declarations.Get(name)
	if !ok {
		return nil, &UnknownPackageError{Name: name}
	}
	block, ok := node.(*tree.Tree)
	if !ok {
		return nil, &settings.TypeError{Key: tree.JoinPath(PackagesKey, name), Want: settings.KindTree, Value: node}
	}
	pkg, err := ParsePackage(name, block)
	if err != nil {
		return nil, err
	}
	p.parsed[name] = pkg
	return pkg, nil
}

// Names returns the declared package names, sorted.
func (p *Packages) Names() []string {
	names := p.declarations.Keys()
	sort.Strings(names)
	return names
}

// Root finds the package invoked as name: the package called name, or
// else the first package, by name, declaring name as an alias.
func (p *Packages) Root(name string) (*Package, error) {
	if p.declarations.Has(name) {
		return p.Lookup(name)
	}
	for _, candidate := range p.Names() {
		pkg, err := p.Lookup(candidate)
		if err != nil {
			// Broken unrelated declarations do not block alias lookup;
			// they fail when actually required.
			continue
		}
		for _, alias := range pkg.Aliases {
			if alias.Name == name {
				return pkg, nil
			}
		}
	}
	return nil, &UnknownPackageError{Name: name}
}

// fieldErrors collects view accessor errors.
type fieldErrors []error

func (e *fieldErrors) string(view *settings.View, key string) string {
	value, err := view.String(key)
	if err != nil {
		*e = append(*e, err)
	}
	return value
}

func (e *fieldErrors) strings(view *settings.View, key string) []string {
	value, err := view.Strings(key)
	if err != nil {
		*e = append(*e, err)
	}
	return value
}

func (e fieldErrors) join() error {
	return errors.Join(e...)
}
