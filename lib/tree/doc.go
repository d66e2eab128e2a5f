// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tree is the node model shared by every stagehand settings
// component.
//
// A node is either a [Tree] (an ordered mapping from string keys to
// nodes) or a value. Values are scalars or lists in canonical form:
// string, bool, int64, float64, nil, and []any of canonical values.
// [Normalize] converts other Go kinds (int, uint32, float32, []string,
// map[string]any) into canonical form; every setter normalizes, so a
// tree built from YAML, CBOR, or Go literals compares equal with [Equal]
// when it holds the same data. A tree is never itself a value, and an
// empty tree is still a tree.
//
// Key order is preserved through every operation and every
// serialization: YAML (via [Tree.UnmarshalYAML] / [Tree.MarshalYAML])
// and CBOR (via a private tag, see [Tree.MarshalCBOR]). [Equal] compares
// mappings without regard to key order; order is a presentation
// property, not part of a tree's identity.
//
// Nested nodes are addressed with dotted paths ("packages.maya.version")
// or with explicit key slices when a key itself contains a dot.
package tree
