// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treediff

import (
	"fmt"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

type recordedChange struct {
	kind  ChangeKind
	path  []string
	value any
}

// ApplyDifference records the differences between two trees and replays
// them onto another tree.
//
//	var difference treediff.ApplyDifference
//	treediff.Diff(&difference, left, right)
//	rebuilt, err := difference.Apply(left) // tree.Equal(rebuilt, right)
type ApplyDifference struct {
	Base

	changes []recordedChange
}

var _ Delegate = (*ApplyDifference)(nil)

func (a *ApplyDifference) RegisterChange(kind ChangeKind, key string, left, right any) {
	switch kind {
	case Added, Modified:
		a.changes = append(a.changes, recordedChange{kind: kind, path: a.Path(key), value: tree.Clone(right)})
	case Deleted:
		a.changes = append(a.changes, recordedChange{kind: kind, path: a.deletionPath(key)})
	}
}

// deletionPath returns the path to remove for a deleted key. A leaf of a
// subtree that is gone entirely on the right is deleted by removing the
// shallowest missing level, so that {a: {b: 1}} -> {} removes a while
// {a: {b: 1}} -> {a: {}} keeps it.
func (a *ApplyDifference) deletionPath(key string) []string {
	path := a.Path(key)
	for index, level := range a.levels {
		if IsAbsent(level.Right) {
			return path[:index+1]
		}
	}
	return path
}

// Len returns the number of recorded changes.
func (a *ApplyDifference) Len() int {
	return len(a.changes)
}

// Apply replays the recorded changes onto a copy of base.
func (a *ApplyDifference) Apply(base *tree.Tree) (*tree.Tree, error) {
	result := base.Clone()
	for _, change := range a.changes {
		switch change.kind {
		case Deleted:
			result.DeleteKeys(change.path)
		default:
			if err := result.SetKeys(change.path, tree.Clone(change.value)); err != nil {
				return nil, fmt.Errorf("applying %s change: %w", change.kind, err)
			}
		}
	}
	return result, nil
}
