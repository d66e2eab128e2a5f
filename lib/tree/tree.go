// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tree is an ordered, string-keyed mapping. The zero value is an empty
// tree ready to use.
type Tree struct {
	keys   []string
	values map[string]any
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{values: make(map[string]any)}
}

// FromMap converts a Go map into a tree. Go maps are unordered, so keys
// are inserted in sorted order to keep the result deterministic. Nested
// map[string]any values become nested trees.
func FromMap(values map[string]any) *Tree {
	result := New()
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		result.Set(key, values[key])
	}
	return result
}

// Len returns the number of keys at this level.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns a copy of the keys in insertion order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

// Has reports whether key exists at this level.
func (t *Tree) Has(key string) bool {
	if t == nil {
		return false
	}
	_, ok := t.values[key]
	return ok
}

// Get returns the node stored under key.
func (t *Tree) Get(key string) (any, bool) {
	if t == nil {
		return nil, false
	}
	value, ok := t.values[key]
	return value, ok
}

// Set stores value under key, normalizing it first. A new key is
// appended after the existing keys; an existing key keeps its position.
func (t *Tree) Set(key string, value any) {
	if t.values == nil {
		t.values = make(map[string]any)
	}
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = Normalize(value)
}

// Delete removes key and reports whether it was present.
func (t *Tree) Delete(key string) bool {
	if t == nil {
		return false
	}
	if _, ok := t.values[key]; !ok {
		return false
	}
	delete(t.values, key)
	for index, existing := range t.keys {
		if existing == key {
			t.keys = append(t.keys[:index], t.keys[index+1:]...)
			break
		}
	}
	return true
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	result := New()
	if t == nil {
		return result
	}
	for _, key := range t.keys {
		result.keys = append(result.keys, key)
		result.values[key] = Clone(t.values[key])
	}
	return result
}

// ToMap converts the tree into nested Go maps. Key order is lost.
func (t *Tree) ToMap() map[string]any {
	result := make(map[string]any, t.Len())
	if t == nil {
		return result
	}
	for _, key := range t.keys {
		result[key] = toPlain(t.values[key])
	}
	return result
}

func toPlain(value any) any {
	switch typed := value.(type) {
	case *Tree:
		return typed.ToMap()
	case []any:
		result := make([]any, len(typed))
		for index, element := range typed {
			result[index] = toPlain(element)
		}
		return result
	default:
		return value
	}
}

// Walk calls visit for every leaf value in depth-first, insertion
// order, passing the full key path. Empty subtrees are visited once
// with the empty tree as value so callers can see them. Returning false
// from visit stops the walk.
func (t *Tree) Walk(visit func(keys []string, value any) bool) {
	t.walk(nil, visit)
}

func (t *Tree) walk(prefix []string, visit func([]string, any) bool) bool {
	for _, key := range t.Keys() {
		path := append(append([]string(nil), prefix...), key)
		value := t.values[key]
		if subtree, ok := value.(*Tree); ok && subtree.Len() > 0 {
			if !subtree.walk(path, visit) {
				return false
			}
			continue
		}
		if !visit(path, value) {
			return false
		}
	}
	return true
}

// String renders the tree as YAML, for logs and error messages.
func (t *Tree) String() string {
	data, err := yaml.Marshal(t)
	if err != nil {
		return "<unrenderable tree: " + err.Error() + ">"
	}
	return string(data)
}

// IsTree reports whether node is a mapping node.
func IsTree(node any) bool {
	_, ok := node.(*Tree)
	return ok
}

// Clone deep-copies a node. Scalars are returned unchanged.
func Clone(node any) any {
	switch typed := node.(type) {
	case *Tree:
		return typed.Clone()
	case []any:
		result := make([]any, len(typed))
		for index, element := range typed {
			result[index] = Clone(element)
		}
		return result
	default:
		return node
	}
}

// Equal compares two nodes structurally. Trees compare as mappings
// (same key set, equal values) regardless of key order; lists compare
// element-wise; scalars compare after normalization.
func Equal(left, right any) bool {
	left, right = Normalize(left), Normalize(right)
	switch leftTyped := left.(type) {
	case *Tree:
		rightTyped, ok := right.(*Tree)
		if !ok || leftTyped.Len() != rightTyped.Len() {
			return false
		}
		for _, key := range leftTyped.keys {
			rightValue, exists := rightTyped.values[key]
			if !exists || !Equal(leftTyped.values[key], rightValue) {
				return false
			}
		}
		return true
	case []any:
		rightTyped, ok := right.([]any)
		if !ok || len(leftTyped) != len(rightTyped) {
			return false
		}
		for index := range leftTyped {
			if !Equal(leftTyped[index], rightTyped[index]) {
				return false
			}
		}
		return true
	default:
		if _, ok := right.(*Tree); ok {
			return false
		}
		if _, ok := right.([]any); ok {
			return false
		}
		return reflect.DeepEqual(left, right)
	}
}
