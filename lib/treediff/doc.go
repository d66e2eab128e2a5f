// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package treediff implements a generic two-way comparison of settings
// trees and the delegates built on it.
//
// [Diff] walks a left (base) and right (override) node and reports every
// difference to a [Delegate]. At each tree level it reports, in order:
//
//   - keys present only on the right, as [Added]. An added subtree is
//     reported leaf by leaf; an added empty subtree is reported once.
//   - keys present only on the left, as [Deleted], with the same rule.
//   - keys present on both sides. When both values are trees the walk
//     descends into them; when exactly one side is a tree the key is
//     reported as one [Deleted] followed by one [Added] (a type flip);
//     otherwise the two values are compared and reported as [Unchanged]
//     or [Modified].
//
// Traversal order within a level follows the key order of the trees but
// callers must not rely on it across keys.
//
// The delegates in this package cover the launcher's needs:
//
//   - [AdditiveMerge] layers trees on top of each other. Right wins,
//     except that a left string ending in the lock marker "!" can never
//     be replaced by a later layer.
//   - [ValidateSchema] collects clashes: keys whose values differ between
//     two schema templates.
//   - [ApplyDifference] records a diff and replays it onto a tree. Replaying
//     Diff(L, R) onto L reproduces R exactly.
//   - [DiffIndex] produces a structured, renderable change record used
//     by launch compatibility checks.
//
// Custom delegates embed [Base], which implements everything except
// RegisterChange for [tree.Tree] nodes and keeps track of the key path
// of the level being compared.
package treediff
