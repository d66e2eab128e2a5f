// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treediff

import (
	"github.com/bureau-foundation/stagehand/lib/tree"
)

// AdditiveMerge layers trees on top of a base. Keys of a merged layer
// are added or override existing values, except that an existing string
// carrying the [LockMarker] is never replaced. Keys missing from a layer
// are kept.
//
// The merged tree keeps lock markers, so a value locked by an early
// layer stays locked through every later Merge. [AdditiveMerge.Result]
// returns the tree with markers stripped.
type AdditiveMerge struct {
	Base

	result *tree.Tree
	err    error
}

var _ Delegate = (*AdditiveMerge)(nil)

// NewAdditiveMerge returns a merge seeded with a copy of base. A nil
// base starts from an empty tree.
func NewAdditiveMerge(base *tree.Tree) *AdditiveMerge {
	seed := tree.New()
	if base != nil {
		seed = base.Clone()
	}
	return &AdditiveMerge{result: seed}
}

// Merge layers override on top of the current result.
func (m *AdditiveMerge) Merge(override *tree.Tree) *AdditiveMerge {
	if override == nil {
		return m
	}
	m.levels = m.levels[:0]
	Diff(m, m.result.Clone(), override)
	return m
}

// RegisterChange applies one difference to the merged tree.
func (m *AdditiveMerge) RegisterChange(kind ChangeKind, key string, left, right any) {
	switch kind {
	case Added, Modified:
		if IsLocked(left) {
			return
		}
		m.set(key, right)
	}
}

func (m *AdditiveMerge) set(key string, value any) {
	if err := m.result.SetKeys(m.Path(key), tree.Clone(value)); err != nil && m.err == nil {
		m.err = err
	}
}

// Tree returns the merged tree with lock markers intact. The returned
// tree is owned by the merge; callers must not modify it.
func (m *AdditiveMerge) Tree() *tree.Tree {
	return m.result
}

// Result returns a copy of the merged tree with every lock marker
// stripped.
func (m *AdditiveMerge) Result() *tree.Tree {
	return StripTreeLocks(m.result)
}

// Err returns the first error encountered while writing merged values.
// Writes only fail when a layer addresses a path through a value, which
// a well-formed diff never does.
func (m *AdditiveMerge) Err() error {
	return m.err
}

// Merge layers every tree in order and returns the stripped result.
func Merge(layers ...*tree.Tree) *tree.Tree {
	merge := NewAdditiveMerge(nil)
	for _, layer := range layers {
		merge.Merge(layer)
	}
	return merge.Result()
}
