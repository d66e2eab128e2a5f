// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treediff

import (
	"strings"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// ChangeKind classifies one reported difference.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Added
	Deleted
	Modified
)

// String returns the lowercase name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

type absentNode struct{}

// Absent is passed to a delegate in place of a node that does not exist
// on one side of the comparison.
var Absent any = absentNode{}

// IsAbsent reports whether node is the [Absent] placeholder.
func IsAbsent(node any) bool {
	_, ok := node.(absentNode)
	return ok
}

// Delegate receives the events of a [Diff] walk and answers the
// structural questions the walk needs.
type Delegate interface {
	// IsTree reports whether node is a mapping that should be descended
	// into rather than compared as a value.
	IsTree(node any) bool

	// Keys returns the keys of a tree node.
	Keys(node any) []string

	// ValueByKey returns the child of a tree node.
	ValueByKey(node any, key string) any

	// SubtractKeyLists returns the keys of from that are not in remove,
	// preserving the order of from.
	SubtractKeyLists(from, remove []string) []string

	// PossiblyModifiedKeys returns the keys present in both lists.
	PossiblyModifiedKeys(left, right []string) []string

	// EqualValues compares two leaf values.
	EqualValues(left, right any) bool

	// RegisterChange reports one difference for key at the current
	// level. A side that does not hold the key is [Absent].
	RegisterChange(kind ChangeKind, key string, left, right any)

	// PushTreeLevel is called before descending into key. Either side
	// may be [Absent] when an added or deleted subtree is reported
	// leaf by leaf.
	PushTreeLevel(key string, left, right any)

	// PopTreeLevel is called after the walk leaves the level entered by
	// the matching PushTreeLevel.
	PopTreeLevel()
}

// Diff compares left against right and reports every difference to
// delegate. Both nodes are expected to be trees; a root that is not a
// tree has no keys and contributes nothing.
func Diff(delegate Delegate, left, right any) {
	diffTrees(delegate, left, right)
}

func diffTrees(delegate Delegate, left, right any) {
	leftKeys := delegate.Keys(left)
	rightKeys := delegate.Keys(right)

	for _, key := range delegate.SubtractKeyLists(rightKeys, leftKeys) {
		reportWhole(delegate, Added, key, delegate.ValueByKey(right, key))
	}
	for _, key := range delegate.SubtractKeyLists(leftKeys, rightKeys) {
		reportWhole(delegate, Deleted, key, delegate.ValueByKey(left, key))
	}

	for _, key := range delegate.PossiblyModifiedKeys(leftKeys, rightKeys) {
		leftValue := delegate.ValueByKey(left, key)
		rightValue := delegate.ValueByKey(right, key)
		leftIsTree := delegate.IsTree(leftValue)
		rightIsTree := delegate.IsTree(rightValue)

		switch {
		case leftIsTree && rightIsTree:
			delegate.PushTreeLevel(key, leftValue, rightValue)
			diffTrees(delegate, leftValue, rightValue)
			delegate.PopTreeLevel()
		case leftIsTree != rightIsTree:
			delegate.RegisterChange(Deleted, key, leftValue, rightValue)
			delegate.RegisterChange(Added, key, leftValue, rightValue)
		case delegate.EqualValues(leftValue, rightValue):
			delegate.RegisterChange(Unchanged, key, leftValue, rightValue)
		default:
			delegate.RegisterChange(Modified, key, leftValue, rightValue)
		}
	}
}

// reportWhole reports a node that exists on one side only. Non-empty
// subtrees are reported leaf by leaf.
func reportWhole(delegate Delegate, kind ChangeKind, key string, node any) {
	left, right := node, Absent
	if kind == Added {
		left, right = Absent, node
	}

	if !delegate.IsTree(node) || len(delegate.Keys(node)) == 0 {
		delegate.RegisterChange(kind, key, left, right)
		return
	}

	delegate.PushTreeLevel(key, left, right)
	for _, child := range delegate.Keys(node) {
		reportWhole(delegate, kind, child, delegate.ValueByKey(node, child))
	}
	delegate.PopTreeLevel()
}

// Level is one entry of the key path tracked by [Base].
type Level struct {
	Key   string
	Left  any
	Right any
}

// Base implements [Delegate] for [tree.Tree] nodes, except for
// RegisterChange. It records the levels the walk has descended into so
// embedding delegates can qualify keys.
type Base struct {
	levels []Level
}

// IsTree reports whether node is a *tree.Tree.
func (b *Base) IsTree(node any) bool {
	return tree.IsTree(node)
}

// Keys returns the keys of a *tree.Tree, or nil for anything else.
func (b *Base) Keys(node any) []string {
	if typed, ok := node.(*tree.Tree); ok {
		return typed.Keys()
	}
	return nil
}

// ValueByKey returns the child of a *tree.Tree, or [Absent].
func (b *Base) ValueByKey(node any, key string) any {
	typed, ok := node.(*tree.Tree)
	if !ok {
		return Absent
	}
	value, ok := typed.Get(key)
	if !ok {
		return Absent
	}
	return value
}

// SubtractKeyLists returns the keys of from missing from remove.
func (b *Base) SubtractKeyLists(from, remove []string) []string {
	removed := make(map[string]struct{}, len(remove))
	for _, key := range remove {
		removed[key] = struct{}{}
	}
	var result []string
	for _, key := range from {
		if _, ok := removed[key]; !ok {
			result = append(result, key)
		}
	}
	return result
}

// PossiblyModifiedKeys returns the keys of left that are also in right,
// in left order.
func (b *Base) PossiblyModifiedKeys(left, right []string) []string {
	present := make(map[string]struct{}, len(right))
	for _, key := range right {
		present[key] = struct{}{}
	}
	var result []string
	for _, key := range left {
		if _, ok := present[key]; ok {
			result = append(result, key)
		}
	}
	return result
}

// EqualValues compares with [tree.Equal].
func (b *Base) EqualValues(left, right any) bool {
	return tree.Equal(left, right)
}

func (b *Base) PushTreeLevel(key string, left, right any) {
	b.levels = append(b.levels, Level{Key: key, Left: left, Right: right})
}

func (b *Base) PopTreeLevel() {
	if len(b.levels) > 0 {
		b.levels = b.levels[:len(b.levels)-1]
	}
}

// Levels returns the levels entered so far, outermost first. The slice
// is only valid until the next push or pop.
func (b *Base) Levels() []Level {
	return b.levels
}

// Path returns the full key path of key at the current level.
func (b *Base) Path(key string) []string {
	path := make([]string, 0, len(b.levels)+1)
	for _, level := range b.levels {
		path = append(path, level.Key)
	}
	return append(path, key)
}

// QualifiedKey returns the dotted key path of key at the current level.
func (b *Base) QualifiedKey(key string) string {
	return strings.Join(b.Path(key), tree.Separator)
}
