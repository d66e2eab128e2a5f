// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ctxstack layers named contexts into one effective
// configuration and service lookup.
//
// A [Context] owns a settings store and a registry of service instances
// and instantiable types. Registry entries are keyed by an interface
// type given as a type parameter:
//
//	ctxstack.Register[procctl.Delegate](ctx, delegate)
//	delegates := ctxstack.Instances[procctl.Delegate](ctx, nil)
//
// A [Stack] is an ordered list of contexts. [Stack.Settings] merges the
// settings of every context bottom-up with lock-aware additive merging;
// the merge is cached per depth so pushing a context only merges the new
// layer. Service lookups ([StackInstances], [StackTypes]) search
// top-down and by default stop at the first context that has a match
// ([NearestWins]).
//
// [NewInstances] instantiates registered types under a creation policy
// such as [CreateMissing] (one instance per type, unless one exists) or
// [CreateFirst] (only if the interface has no instance at all).
//
// [NewHierarchical] builds a context from the configuration directories
// ("etc" by default) found in the ancestors of one or more root
// directories. The stack records the content hash of every file its
// contexts loaded, and a hierarchical context skips files whose content
// is already on the stack.
//
// A Stack has no internal locking. Callers that share one across
// goroutines synchronize access themselves.
package ctxstack
