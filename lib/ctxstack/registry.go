// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ctxstack

import (
	"fmt"
	"reflect"
)

// Type is an instantiable service type registered under interface T.
type Type[T any] struct {
	// Name identifies the type in logs and configuration.
	Name string

	// New creates an instance.
	New func() (T, error)

	owner *Context
}

// Owner returns the context the type was registered in.
func (t *Type[T]) Owner() *Context {
	return t.owner
}

func (t *Type[T]) String() string {
	return t.Name
}

type entry struct {
	instance any
	// origin is the *Type[T] an instance was created from, if any.
	origin any
	// typ is a *Type[T] for type entries.
	typ any
}

// registry holds entries per interface in registration order.
type registry struct {
	entries map[reflect.Type][]entry
}

func (r *registry) add(key reflect.Type, item entry) {
	if r.entries == nil {
		r.entries = make(map[reflect.Type][]entry)
	}
	r.entries[key] = append(r.entries[key], item)
}

func (r *registry) list(key reflect.Type) []entry {
	return r.entries[key]
}

func interfaceKey[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// sameInstance compares two instances by identity. Values of
// non-comparable types are never considered identical.
func sameInstance(left, right any) bool {
	if reflect.TypeOf(left) != reflect.TypeOf(right) {
		return false
	}
	if left == nil {
		return true
	}
	if !reflect.TypeOf(left).Comparable() {
		return false
	}
	return left == right
}

// Register adds instance to the context under interface T. It returns
// false when the same instance is already registered for T.
func Register[T any](c *Context, instance T) bool {
	return registerInstance[T](c, instance, nil)
}

func registerInstance[T any](c *Context, instance T, origin *Type[T]) bool {
	key := interfaceKey[T]()
	for _, existing := range c.registry.list(key) {
		if existing.typ == nil && sameInstance(existing.instance, any(instance)) {
			return false
		}
	}
	item := entry{instance: instance}
	if origin != nil {
		item.origin = origin
	}
	c.registry.add(key, item)
	return true
}

// RegisterType adds an instantiable type to the context under interface
// T. Type names are unique per interface and context.
func RegisterType[T any](c *Context, name string, factory func() (T, error)) (*Type[T], error) {
	key := interfaceKey[T]()
	for _, existing := range c.registry.list(key) {
		if typ, ok := existing.typ.(*Type[T]); ok && typ.Name == name {
			return nil, fmt.Errorf("context %q: type %q already registered for %s", c.name, name, key)
		}
	}
	typ := &Type[T]{Name: name, New: factory, owner: c}
	c.registry.add(key, entry{typ: typ})
	return typ, nil
}

// Instances returns the instances registered for T in c that satisfy
// predicate, most recently registered first. A nil predicate accepts
// everything.
func Instances[T any](c *Context, predicate func(T) bool) []T {
	entries := c.registry.list(interfaceKey[T]())
	var result []T
	for index := len(entries) - 1; index >= 0; index-- {
		if entries[index].typ != nil {
			continue
		}
		instance, ok := entries[index].instance.(T)
		if !ok {
			continue
		}
		if predicate == nil || predicate(instance) {
			result = append(result, instance)
		}
	}
	return result
}

// Types returns the types registered for T in c that satisfy predicate,
// most recently registered first.
func Types[T any](c *Context, predicate func(*Type[T]) bool) []*Type[T] {
	entries := c.registry.list(interfaceKey[T]())
	var result []*Type[T]
	for index := len(entries) - 1; index >= 0; index-- {
		typ, ok := entries[index].typ.(*Type[T])
		if !ok {
			continue
		}
		if predicate == nil || predicate(typ) {
			result = append(result, typ)
		}
	}
	return result
}

// createdFrom reports whether c holds an instance created from typ.
func createdFrom[T any](c *Context, typ *Type[T]) bool {
	for _, existing := range c.registry.list(interfaceKey[T]()) {
		if origin, ok := existing.origin.(*Type[T]); ok && origin == typ {
			return true
		}
	}
	return false
}
