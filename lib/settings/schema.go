// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Kind is the declared type of a schema key.
type Kind int

const (
	// KindAny accepts any value, including subtrees.
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindTree
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindTree:
		return "tree"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// RequiredValue marks a template key that has no default.
type RequiredValue struct {
	Kind Kind
}

// Required returns a template marker for a key of the given kind that
// must be present in the data.
func Required(kind Kind) RequiredValue {
	return RequiredValue{Kind: kind}
}

// KindOf returns the kind a template leaf declares.
func KindOf(value any) Kind {
	switch typed := value.(type) {
	case RequiredValue:
		return typed.Kind
	case string:
		return KindString
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case bool:
		return KindBool
	case []any:
		return KindList
	case *tree.Tree:
		return KindTree
	default:
		return KindAny
	}
}

// Schema declares the keys below Key and their types and defaults.
type Schema struct {
	// Key is the dotted path of the subtree the schema describes. The
	// empty key describes the root.
	Key string

	// Template mirrors the shape of the data. Leaves are defaults or
	// [RequiredValue] markers.
	Template *tree.Tree
}

// NewSchema builds a schema from a nested map template. Map values
// become subtrees; Go numeric types are normalized.
func NewSchema(key string, template map[string]any) *Schema {
	return &Schema{Key: key, Template: tree.FromMap(template)}
}

// Placed returns the template positioned at the schema key inside an
// otherwise empty root tree.
func (s *Schema) Placed() *tree.Tree {
	if s.Key == "" {
		return s.Template.Clone()
	}
	root := tree.New()
	// SetPath only fails when an intermediate is a value; root is empty.
	_ = root.SetPath(s.Key, s.Template.Clone())
	return root
}

// Defaults returns the template with required markers removed: the data
// a provider would report if nothing was configured.
func (s *Schema) Defaults() *tree.Tree {
	return withoutRequired(s.Template)
}

func withoutRequired(template *tree.Tree) *tree.Tree {
	result := tree.New()
	for _, key := range template.Keys() {
		value, _ := template.Get(key)
		switch typed := value.(type) {
		case RequiredValue:
			continue
		case *tree.Tree:
			result.Set(key, withoutRequired(typed))
		default:
			result.Set(key, tree.Clone(value))
		}
	}
	return result
}

func (s *Schema) String() string {
	if s.Key == "" {
		return "<root>"
	}
	return s.Key
}
