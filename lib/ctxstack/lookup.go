// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ctxstack

import (
	"fmt"
)

// SearchMode controls how far a stack lookup descends.
type SearchMode int

const (
	// NearestWins stops at the first context, from the top, with a
	// matching entry.
	NearestWins SearchMode = iota
	// RecurseAlways collects matches from every context.
	RecurseAlways
)

// StackInstances searches the stack top-down for instances of T.
func StackInstances[T any](s *Stack, mode SearchMode, predicate func(T) bool) []T {
	var result []T
	for index := len(s.contexts) - 1; index >= 0; index-- {
		found := Instances[T](s.contexts[index], predicate)
		result = append(result, found...)
		if mode == NearestWins && len(found) > 0 {
			break
		}
	}
	return result
}

// StackInstance returns the nearest instance of T.
func StackInstance[T any](s *Stack, predicate func(T) bool) (T, bool) {
	found := StackInstances[T](s, NearestWins, predicate)
	if len(found) == 0 {
		var zero T
		return zero, false
	}
	return found[0], true
}

// StackTypes searches the stack top-down for types registered for T.
func StackTypes[T any](s *Stack, mode SearchMode, predicate func(*Type[T]) bool) []*Type[T] {
	var result []*Type[T]
	for index := len(s.contexts) - 1; index >= 0; index-- {
		found := Types[T](s.contexts[index], predicate)
		result = append(result, found...)
		if mode == NearestWins && len(found) > 0 {
			break
		}
	}
	return result
}

// CreatePolicy decides whether [NewInstances] instantiates typ.
type CreatePolicy[T any] func(s *Stack, typ *Type[T]) bool

// CreateMissing allows a type only if no instance created from it
// exists anywhere on the stack.
func CreateMissing[T any](s *Stack, typ *Type[T]) bool {
	for _, c := range s.contexts {
		if createdFrom(c, typ) {
			return false
		}
	}
	return true
}

// CreateFirst allows a type only if the stack holds no instance of T at
// all.
func CreateFirst[T any](s *Stack, typ *Type[T]) bool {
	return len(StackInstances[T](s, NearestWins, nil)) == 0
}

// NewInstances instantiates every type of T on the stack, top-down, for
// which mayCreate returns true, and returns the new instances. With
// takeOwnership each instance is registered in the context that
// declared its type, which later policy checks observe.
func NewInstances[T any](s *Stack, mayCreate CreatePolicy[T], takeOwnership bool) ([]T, error) {
	var created []T
	for _, typ := range StackTypes[T](s, RecurseAlways, nil) {
		if mayCreate != nil && !mayCreate(s, typ) {
			continue
		}
		instance, err := typ.New()
		if err != nil {
			return created, fmt.Errorf("creating %s instance: %w", typ.Name, err)
		}
		if takeOwnership {
			registerInstance[T](typ.owner, instance, typ)
		}
		s.logger.Debug("instance created", "type", typ.Name, "owner", typ.owner.name, "owned", takeOwnership)
		created = append(created, instance)
	}
	return created, nil
}

// Created returns the instance created from typ with ownership taken,
// searching the stack top-down.
func Created[T any](s *Stack, typ *Type[T]) (T, bool) {
	key := interfaceKey[T]()
	for index := len(s.contexts) - 1; index >= 0; index-- {
		for _, existing := range s.contexts[index].registry.list(key) {
			if origin, ok := existing.origin.(*Type[T]); ok && origin == typ {
				if instance, ok := existing.instance.(T); ok {
					return instance, true
				}
			}
		}
	}
	var zero T
	return zero, false
}
