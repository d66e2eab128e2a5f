// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/tree"
	"github.com/bureau-foundation/stagehand/lib/treediff"
)

// PythonPathVariable receives every package's python_paths.
const PythonPathVariable = "PYTHONPATH"

// DirectiveKind is the operation a directive applies to a variable.
type DirectiveKind int

const (
	// DirectiveAuto appends to path variables the delegate considers
	// appendable and sets everything else.
	DirectiveAuto DirectiveKind = iota
	DirectiveSet
	DirectiveAppend
	DirectivePrepend
	DirectiveUnset
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveAuto:
		return "auto"
	case DirectiveSet:
		return "set"
	case DirectiveAppend:
		return "append"
	case DirectivePrepend:
		return "prepend"
	case DirectiveUnset:
		return "unset"
	default:
		return fmt.Sprintf("DirectiveKind(%d)", int(k))
	}
}

// Directive is one environment change declared by a package.
type Directive struct {
	Package  string
	Variable string
	Kind     DirectiveKind
	// Value may end in the lock marker and contain {NAME} references.
	Value string
}

func (d Directive) String() string {
	return fmt.Sprintf("%s: %s %s %q", d.Package, d.Kind, d.Variable, d.Value)
}

var directiveKinds = map[string]DirectiveKind{
	"set":     DirectiveSet,
	"append":  DirectiveAppend,
	"prepend": DirectivePrepend,
}

// Directives returns the environment directives of pkg in declaration
// order, python_paths last.
//
// A variable's value is either a scalar (an automatic directive), a
// list (each element appended), null (unset), or a mapping whose keys
// are "set", "append" and "prepend", applied in the order written. A
// list under a mapping key is joined with the path list separator.
func Directives(pkg *Package) ([]Directive, error) {
	var directives []Directive
	add := func(variable string, kind DirectiveKind, value string) {
		directives = append(directives, Directive{Package: pkg.Name, Variable: variable, Kind: kind, Value: value})
	}

	for _, variable := range pkg.Variables.Keys() {
		node, _ := pkg.Variables.Get(variable)
		switch typed := node.(type) {
		case nil:
			add(variable, DirectiveUnset, "")
		case []any:
			for _, element := range typed {
				text, err := scalarText(element)
				if err != nil {
					return nil, fmt.Errorf("package %s: variable %s: %w", pkg.Name, variable, err)
				}
				add(variable, DirectiveAppend, text)
			}
		case *tree.Tree:
			for _, key := range typed.Keys() {
				kind, ok := directiveKinds[key]
				if !ok {
					return nil, fmt.Errorf("package %s: variable %s: unknown directive %q", pkg.Name, variable, key)
				}
				value, _ := typed.Get(key)
				text, err := joinedText(value)
				if err != nil {
					return nil, fmt.Errorf("package %s: variable %s.%s: %w", pkg.Name, variable, key, err)
				}
				add(variable, kind, text)
			}
		default:
			text, err := scalarText(typed)
			if err != nil {
				return nil, fmt.Errorf("package %s: variable %s: %w", pkg.Name, variable, err)
			}
			add(variable, DirectiveAuto, text)
		}
	}

	for _, path := range pkg.PythonPaths {
		add(PythonPathVariable, DirectiveAppend, path)
	}
	return directives, nil
}

func scalarText(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case int64:
		return strconv.FormatInt(typed, 10), nil
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(typed), nil
	default:
		return "", fmt.Errorf("unsupported value %v (%T)", value, value)
	}
}

func joinedText(value any) (string, error) {
	list, ok := value.([]any)
	if !ok {
		return scalarText(value)
	}
	parts := make([]string, len(list))
	for index, element := range list {
		text, err := scalarText(element)
		if err != nil {
			return "", err
		}
		parts[index] = text
	}
	return strings.Join(parts, string(os.PathListSeparator)), nil
}

// PathRejection records a path element the delegate vetoed.
type PathRejection struct {
	Package  string `json:"package"`
	Variable string `json:"variable"`
	Path     string `json:"path"`
}

// Composition is the result of [ComposeEnvironment].
type Composition struct {
	Environment *Environment
	// Rejected lists vetoed path elements; they are dropped, not fatal.
	Rejected []PathRejection
	// Blocked lists directives ignored because their variable was
	// locked.
	Blocked []Directive
}

// ComposeEnvironment applies the directives of packages, in order, on
// top of base. base is not modified.
func ComposeEnvironment(delegate Delegate, base *Environment, packages []*Package, logger *slog.Logger) (*Composition, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if base == nil {
		base = NewEnvironment(nil)
	}
	c := &composer{
		delegate: delegate,
		logger:   logger,
		result:   &Composition{Environment: base.Clone()},
	}
	for _, pkg := range packages {
		directives, err := Directives(pkg)
		if err != nil {
			return nil, err
		}
		for _, directive := range directives {
			if err := c.apply(directive); err != nil {
				return nil, err
			}
		}
	}
	return c.result, nil
}

type composer struct {
	delegate Delegate
	logger   *slog.Logger
	result   *Composition
}

func (c *composer) apply(d Directive) error {
	env := c.result.Environment
	if env.Locked(d.Variable) {
		c.result.Blocked = append(c.result.Blocked, d)
		c.logger.Debug("variable locked, directive ignored", "directive", d.String())
		return nil
	}

	value, err := c.delegate.ResolveValue(d.Variable, d.Value, env)
	if err != nil {
		return fmt.Errorf("package %s: resolving %s: %w", d.Package, d.Variable, err)
	}
	locked := treediff.IsLocked(value)
	if locked {
		value = strings.TrimSuffix(value, treediff.LockMarker)
	}

	isPath := c.delegate.VariableIsPath(d.Variable)
	kind := d.Kind
	if kind == DirectiveAuto {
		kind = DirectiveSet
		if isPath && c.delegate.VariableIsAppendable(d.Variable, value) {
			kind = DirectiveAppend
		}
	}

	var elements []string
	if isPath && kind != DirectiveUnset {
		elements = c.verify(d, value)
		if len(elements) == 0 && kind != DirectiveSet {
			return nil
		}
		value = strings.Join(elements, string(os.PathListSeparator))
	}

	current, exists := env.Lookup(d.Variable)
	switch kind {
	case DirectiveSet:
		env.Set(d.Variable, value)
	case DirectiveUnset:
		env.Unset(d.Variable)
	case DirectiveAppend:
		env.Set(d.Variable, joinList(current, exists, value, elements, isPath, false))
	case DirectivePrepend:
		env.Set(d.Variable, joinList(current, exists, value, elements, isPath, true))
	}
	if locked {
		env.Lock(d.Variable)
	}
	c.logger.Debug("directive applied", "directive", d.String(), "kind", kind.String(), "locked", locked)
	return nil
}

// verify passes each path element through the delegate.
func (c *composer) verify(d Directive, value string) []string {
	var kept []string
	for _, element := range strings.Split(value, string(os.PathListSeparator)) {
		verified, ok := c.delegate.VerifyPath(d.Variable, element)
		if !ok {
			c.result.Rejected = append(c.result.Rejected, PathRejection{Package: d.Package, Variable: d.Variable, Path: element})
			c.logger.Debug("path rejected", "package", d.Package, "variable", d.Variable, "path", element)
			continue
		}
		kept = append(kept, verified)
	}
	return kept
}

// joinList adds value to current. For path variables elements already
// present are not repeated: appending keeps the existing position,
// prepending moves the element to the front.
func joinList(current string, exists bool, value string, elements []string, isPath, prepend bool) string {
	separator := string(os.PathListSeparator)
	if !exists || current == "" {
		return value
	}
	if !isPath {
		if prepend {
			return value + separator + current
		}
		return current + separator + value
	}

	existing := strings.Split(current, separator)
	if prepend {
		existing = slices.DeleteFunc(existing, func(element string) bool {
			return slices.Contains(elements, element)
		})
		return strings.Join(append(slices.Clone(elements), existing...), separator)
	}
	for _, element := range elements {
		if !slices.Contains(existing, element) {
			existing = append(existing, element)
		}
	}
	return strings.Join(existing, separator)
}
