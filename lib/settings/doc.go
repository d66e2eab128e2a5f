// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings is the launcher's schema-typed configuration store.
//
// Settings data is a [tree.Tree]. Code never reads it directly: every
// consumer declares a [Schema] (a root key plus a template of typed
// defaults) and asks a [Provider] for a [View] of the data through that
// schema. The view fills in defaults, converts values to the declared
// types ("5" becomes int64 5 for an integer key) and fails for keys the
// schema does not declare, so a typo in a key name is an error rather
// than a silent zero value.
//
// A template leaf is either a default value, whose Go type gives the
// key's [Kind], or a [Required] marker. A required key that is missing
// from the data fails resolution with a [*MissingValueError]. An empty
// subtree in a template accepts any subtree from the data unchanged;
// package environment blocks use this for their free-form variable maps.
//
// A [Modifier] adds a mutable overlay on top of a Provider. It snapshots
// its data at construction; [Modifier.Changes] is the sparse difference
// between that snapshot and the current data, and [Modifier.Save]
// serializes either the changes or the full tree.
//
// [LoadFiles] reads YAML and commented JSON files and layers them with
// lock-aware additive merging. Files may carry a platform tag
// ("launcher.lnx.yaml", "launcher.win64.yaml") so several platform
// variants live in one directory; [ListDirectory] returns the files
// that apply to the running platform.
//
// [SchemaValidator] checks a set of schemas against each other and a
// provider against its schemas. Both checks return lists of problems
// and leave the decision about severity to the caller.
package settings
