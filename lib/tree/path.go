// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"
	"strings"
)

// Separator joins the keys of a dotted path.
const Separator = "."

// SplitPath splits a dotted path into keys. The empty path addresses
// the tree itself and yields no keys.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// JoinPath joins keys into a dotted path, skipping empty keys.
func JoinPath(keys ...string) string {
	nonEmpty := keys[:0:0]
	for _, key := range keys {
		if key != "" {
			nonEmpty = append(nonEmpty, key)
		}
	}
	return strings.Join(nonEmpty, Separator)
}

// PathError reports a path that cannot be traversed because an
// intermediate node is a value rather than a tree.
type PathError struct {
	// Path is the dotted path that was requested.
	Path string

	// Blocking is the dotted prefix that holds a value.
	Blocking string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("cannot address %q: %q holds a value, not a tree", e.Path, e.Blocking)
}

// Lookup returns the node at a dotted path.
func (t *Tree) Lookup(path string) (any, bool) {
	return t.LookupKeys(SplitPath(path))
}

// LookupKeys returns the node at the given key path. An empty key path
// returns the tree itself.
func (t *Tree) LookupKeys(keys []string) (any, bool) {
	if t == nil {
		return nil, false
	}
	var current any = t
	for _, key := range keys {
		level, ok := current.(*Tree)
		if !ok {
			return nil, false
		}
		current, ok = level.Get(key)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Subtree returns the tree at a dotted path, or false when the path is
// absent or holds a value.
func (t *Tree) Subtree(path string) (*Tree, bool) {
	node, ok := t.Lookup(path)
	if !ok {
		return nil, false
	}
	subtree, ok := node.(*Tree)
	return subtree, ok
}

// SetPath stores value at a dotted path, creating intermediate trees.
func (t *Tree) SetPath(path string, value any) error {
	return t.SetKeys(SplitPath(path), value)
}

// SetKeys stores value at the given key path, creating intermediate
// trees. It fails with a *PathError when an intermediate node is a
// value. An empty key path is rejected.
func (t *Tree) SetKeys(keys []string, value any) error {
	if len(keys) == 0 {
		return fmt.Errorf("cannot set a value at the empty path")
	}
	level := t
	for index, key := range keys[:len(keys)-1] {
		node, exists := level.Get(key)
		if !exists {
			child := New()
			level.Set(key, child)
			level = child
			continue
		}
		child, ok := node.(*Tree)
		if !ok {
			return &PathError{
				Path:     strings.Join(keys, Separator),
				Blocking: strings.Join(keys[:index+1], Separator),
			}
		}
		level = child
	}
	level.Set(keys[len(keys)-1], value)
	return nil
}

// DeletePath removes the node at a dotted path.
func (t *Tree) DeletePath(path string) bool {
	return t.DeleteKeys(SplitPath(path))
}

// DeleteKeys removes the node at the given key path and reports whether
// it existed. Parents are left in place even if they become empty.
func (t *Tree) DeleteKeys(keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	parent, ok := t.LookupKeys(keys[:len(keys)-1])
	if !ok {
		return false
	}
	level, ok := parent.(*Tree)
	if !ok {
		return false
	}
	return level.Delete(keys[len(keys)-1])
}
