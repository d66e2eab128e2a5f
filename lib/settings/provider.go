// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Provider is a read-only typed view over a settings tree.
type Provider struct {
	data    *tree.Tree
	schemas []*Schema
}

// NewProvider returns a provider over data. The provider does not copy
// data; callers hand over ownership.
func NewProvider(data *tree.Tree, schemas ...*Schema) *Provider {
	if data == nil {
		data = tree.New()
	}
	return &Provider{data: data, schemas: schemas}
}

// Data returns the underlying tree. It must not be modified.
func (p *Provider) Data() *tree.Tree {
	return p.data
}

// AddSchema registers schemas for [Provider.Lookup].
func (p *Provider) AddSchema(schemas ...*Schema) {
	p.schemas = append(p.schemas, schemas...)
}

// Schemas returns the registered schemas.
func (p *Provider) Schemas() []*Schema {
	return p.schemas
}

// Value resolves the subtree at schema.Key through schema. Every
// missing required key and every unconvertible value is reported; the
// returned error joins them.
func (p *Provider) Value(schema *Schema) (*View, error) {
	subtree := tree.New()
	if schema.Key != "" {
		node, ok := p.data.Lookup(schema.Key)
		switch typed := node.(type) {
		case *tree.Tree:
			subtree = typed
		case nil:
		default:
			if ok {
				return nil, &TypeError{Key: schema.Key, Want: KindTree, Value: node}
			}
		}
	} else {
		subtree = p.data
	}

	values, err := resolve(schema.Key, schema.Template, subtree)
	if err != nil {
		return nil, err
	}
	return &View{key: schema.Key, values: values}, nil
}

// Lookup resolves the value at a dotted key through the registered
// schema that covers it. Keys outside every registered schema fail with
// [ErrUnknownKey].
func (p *Provider) Lookup(key string) (any, error) {
	for index := len(p.schemas) - 1; index >= 0; index-- {
		schema := p.schemas[index]
		relative, ok := relativeKey(schema.Key, key)
		if !ok {
			continue
		}
		if _, declared := schema.Template.Lookup(relative); !declared && relative != "" {
			continue
		}
		view, err := p.Value(schema)
		if err != nil {
			return nil, err
		}
		return view.Get(relative)
	}
	return nil, fmt.Errorf("%q: %w", key, ErrUnknownKey)
}

func relativeKey(root, key string) (string, bool) {
	switch {
	case root == "":
		return key, true
	case key == root:
		return "", true
	case strings.HasPrefix(key, root+tree.Separator):
		return key[len(root)+len(tree.Separator):], true
	default:
		return "", false
	}
}

// resolve produces the typed tree for one template level.
func resolve(prefix string, template, data *tree.Tree) (*tree.Tree, error) {
	result := tree.New()
	var errs []error

	for _, key := range template.Keys() {
		qualified := tree.JoinPath(prefix, key)
		declared, _ := template.Get(key)
		value, present := data.Get(key)
		if present && value == nil {
			present = false
		}

		switch typed := declared.(type) {
		case *tree.Tree:
			if !present {
				value = tree.New()
			}
			subtree, ok := value.(*tree.Tree)
			if !ok {
				errs = append(errs, &TypeError{Key: qualified, Want: KindTree, Value: value})
				continue
			}
			if typed.Len() == 0 {
				// A free-form subtree.
				result.Set(key, subtree.Clone())
				continue
			}
			resolved, err := resolve(qualified, typed, subtree)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			result.Set(key, resolved)

		case RequiredValue:
			if !present {
				errs = append(errs, &MissingValueError{Key: qualified, Kind: typed.Kind})
				continue
			}
			converted, ok := convert(value, typed.Kind)
			if !ok {
				errs = append(errs, &TypeError{Key: qualified, Want: typed.Kind, Value: value})
				continue
			}
			result.Set(key, tree.Clone(converted))

		default:
			if !present {
				result.Set(key, tree.Clone(declared))
				continue
			}
			kind := KindOf(declared)
			converted, ok := convert(value, kind)
			if !ok {
				errs = append(errs, &TypeError{Key: qualified, Want: kind, Value: value})
				continue
			}
			result.Set(key, tree.Clone(converted))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}
