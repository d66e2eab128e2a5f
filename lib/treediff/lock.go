// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treediff

import (
	"strings"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// LockMarker is the suffix that locks a string value against being
// overridden by later layers.
const LockMarker = "!"

// IsLocked reports whether value is a string carrying the lock marker.
func IsLocked(value any) bool {
	text, ok := value.(string)
	return ok && strings.HasSuffix(text, LockMarker)
}

// StripLock removes the lock marker from a locked string. Other values
// are returned unchanged.
func StripLock(value any) any {
	if !IsLocked(value) {
		return value
	}
	return strings.TrimSuffix(value.(string), LockMarker)
}

// StripLocks returns a deep copy of node with every lock marker removed,
// including markers on strings inside lists.
func StripLocks(node any) any {
	switch typed := node.(type) {
	case *tree.Tree:
		result := tree.New()
		for _, key := range typed.Keys() {
			value, _ := typed.Get(key)
			result.Set(key, StripLocks(value))
		}
		return result
	case []any:
		result := make([]any, len(typed))
		for index, element := range typed {
			result[index] = StripLocks(element)
		}
		return result
	default:
		return StripLock(node)
	}
}

// StripTreeLocks is [StripLocks] for a *tree.Tree.
func StripTreeLocks(t *tree.Tree) *tree.Tree {
	return StripLocks(t).(*tree.Tree)
}
