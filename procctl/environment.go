// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Environment is a set of environment variables under composition.
// Locked variables ignore every later directive.
type Environment struct {
	values map[string]string
	locked map[string]bool
}

// NewEnvironment returns an environment holding a copy of base.
func NewEnvironment(base map[string]string) *Environment {
	e := &Environment{values: make(map[string]string, len(base)), locked: make(map[string]bool)}
	for name, value := range base {
		e.values[name] = value
	}
	return e
}

// Lookup returns the value of name.
func (e *Environment) Lookup(name string) (string, bool) {
	value, ok := e.values[name]
	return value, ok
}

// Get returns the value of name, or "".
func (e *Environment) Get(name string) string {
	return e.values[name]
}

// Set stores value under name. It does not check locks; directives go
// through [ComposeEnvironment].
func (e *Environment) Set(name, value string) {
	e.values[name] = value
}

// Unset removes name.
func (e *Environment) Unset(name string) {
	delete(e.values, name)
}

// Lock protects name against later directives.
func (e *Environment) Lock(name string) {
	e.locked[name] = true
}

// Locked reports whether name is locked.
func (e *Environment) Locked(name string) bool {
	return e.locked[name]
}

// Names returns the variable names, sorted.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Environ returns "NAME=value" entries sorted by name, the form
// exec.Cmd.Env expects.
func (e *Environment) Environ() []string {
	names := e.Names()
	environ := make([]string, len(names))
	for index, name := range names {
		environ[index] = name + "=" + e.values[name]
	}
	return environ
}

// Map returns a copy of the variables.
func (e *Environment) Map() map[string]string {
	result := make(map[string]string, len(e.values))
	for name, value := range e.values {
		result[name] = value
	}
	return result
}

// Clone returns an independent copy, locks included.
func (e *Environment) Clone() *Environment {
	clone := NewEnvironment(e.values)
	for name := range e.locked {
		clone.locked[name] = true
	}
	return clone
}

// DropMatching removes every variable whose name satisfies match.
func (e *Environment) DropMatching(match func(name string) bool) {
	for name := range e.values {
		if match(name) {
			delete(e.values, name)
			delete(e.locked, name)
		}
	}
}

// MapEnviron converts "NAME=value" entries into a map. Entries without
// "=" are ignored; a later duplicate wins.
func MapEnviron(environ []string) map[string]string {
	result := make(map[string]string, len(environ))
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		result[name] = value
	}
	return result
}

var referencePattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// maxExpansionDepth bounds nested reference expansion.
const maxExpansionDepth = 16

// ExpandReferences replaces "{NAME}" references in value with the
// values lookup returns, expanding references inside those values in
// turn. Unknown names, self-referencing cycles and references nested
// deeper than a fixed bound are left as written.
func ExpandReferences(value string, lookup func(string) (string, bool)) string {
	return expandReferences(value, lookup, nil)
}

func expandReferences(value string, lookup func(string) (string, bool), active []string) string {
	if len(active) >= maxExpansionDepth || !strings.Contains(value, "{") {
		return value
	}
	return referencePattern.ReplaceAllStringFunc(value, func(match string) string {
		name := match[1 : len(match)-1]
		if slices.Contains(active, name) {
			return match
		}
		replacement, ok := lookup(name)
		if !ok {
			return match
		}
		return expandReferences(replacement, lookup, append(slices.Clone(active), name))
	})
}
