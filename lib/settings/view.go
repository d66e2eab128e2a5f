// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// View is the resolved, typed content of a schema. Every key the schema
// declares is present with its declared type.
type View struct {
	key    string
	values *tree.Tree
}

// Key returns the dotted key of the viewed subtree.
func (v *View) Key() string {
	return v.key
}

// Tree returns a copy of the resolved values.
func (v *View) Tree() *tree.Tree {
	return v.values.Clone()
}

// Has reports whether path is declared. Free-form subtrees report the
// keys present in the data.
func (v *View) Has(path string) bool {
	_, ok := v.values.Lookup(path)
	return ok
}

// Get returns the value at a dotted path relative to the view.
func (v *View) Get(path string) (any, error) {
	if path == "" {
		return v.values.Clone(), nil
	}
	value, ok := v.values.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%q: %w", tree.JoinPath(v.key, path), ErrUnknownKey)
	}
	return tree.Clone(value), nil
}

func (v *View) typed(path string, kind Kind) (any, error) {
	value, err := v.Get(path)
	if err != nil {
		return nil, err
	}
	converted, ok := convert(value, kind)
	if !ok {
		return nil, &TypeError{Key: tree.JoinPath(v.key, path), Want: kind, Value: value}
	}
	return converted, nil
}

// String returns a string value.
func (v *View) String(path string) (string, error) {
	value, err := v.typed(path, KindString)
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Int returns an integer value.
func (v *View) Int(path string) (int64, error) {
	value, err := v.typed(path, KindInt)
	if err != nil {
		return 0, err
	}
	return value.(int64), nil
}

// Float returns a floating point value.
func (v *View) Float(path string) (float64, error) {
	value, err := v.typed(path, KindFloat)
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}

// Bool returns a boolean value.
func (v *View) Bool(path string) (bool, error) {
	value, err := v.typed(path, KindBool)
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// Strings returns a list value with every element converted to string.
func (v *View) Strings(path string) ([]string, error) {
	value, err := v.typed(path, KindList)
	if err != nil {
		return nil, err
	}
	return stringList(tree.JoinPath(v.key, path), value)
}

// Sub returns a view of the subtree at path.
func (v *View) Sub(path string) (*View, error) {
	value, err := v.typed(path, KindTree)
	if err != nil {
		return nil, err
	}
	return &View{key: tree.JoinPath(v.key, path), values: value.(*tree.Tree)}, nil
}
