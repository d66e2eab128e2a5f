// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treediff

import (
	"fmt"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Clash is a key whose value differs between two schema templates.
type Clash struct {
	// Key is the dotted path of the clashing key.
	Key   string
	Left  any
	Right any
}

func (c Clash) String() string {
	return fmt.Sprintf("%s: %s != %s", c.Key, formatValue(c.Left), formatValue(c.Right))
}

// ValidateSchema collects clashes between schema templates. Keys that
// exist on one side only are not clashes: schemas are expected to extend
// each other.
type ValidateSchema struct {
	Base

	clashes []Clash
}

var _ Delegate = (*ValidateSchema)(nil)

// Check compares two schema templates and records their clashes.
func (v *ValidateSchema) Check(left, right *tree.Tree) {
	v.levels = v.levels[:0]
	Diff(v, left, right)
}

func (v *ValidateSchema) RegisterChange(kind ChangeKind, key string, left, right any) {
	switch kind {
	case Modified:
		v.clashes = append(v.clashes, Clash{Key: v.QualifiedKey(key), Left: left, Right: right})
	case Deleted:
		// A type flip is reported as Deleted with both sides present,
		// followed by Added. Record it once.
		if !IsAbsent(right) {
			v.clashes = append(v.clashes, Clash{Key: v.QualifiedKey(key), Left: left, Right: right})
		}
	}
}

// Clashes returns every clash recorded so far.
func (v *ValidateSchema) Clashes() []Clash {
	return v.clashes
}
