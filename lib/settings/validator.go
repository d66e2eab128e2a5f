// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"

	"github.com/bureau-foundation/stagehand/lib/tree"
	"github.com/bureau-foundation/stagehand/lib/treediff"
)

// Violation is a schema key that the data does not satisfy.
type Violation struct {
	// Key is the dotted path of the key.
	Key string
	// Want is the declared kind.
	Want Kind
	// Value is the offending value, or nil when the key is missing.
	Value any
	// Missing is true for a required key without a value.
	Missing bool
}

func (v Violation) String() string {
	if v.Missing {
		return fmt.Sprintf("%s: required %s value is missing", v.Key, v.Want)
	}
	return fmt.Sprintf("%s: %#v is not a valid %s", v.Key, v.Value, v.Want)
}

// SchemaValidator collects schemas and checks them against each other
// and against provider data.
type SchemaValidator struct {
	schemas []*Schema
}

// Add records schemas for validation.
func (v *SchemaValidator) Add(schemas ...*Schema) {
	v.schemas = append(v.schemas, schemas...)
}

// Schemas returns the recorded schemas in the order they were added.
func (v *SchemaValidator) Schemas() []*Schema {
	return v.schemas
}

// ValidateSchema returns the keys that two recorded schemas declare
// with different values. Each schema is compared against the merge of
// the schemas recorded before it.
func (v *SchemaValidator) ValidateSchema() []treediff.Clash {
	var clashes []treediff.Clash
	merged := treediff.NewAdditiveMerge(nil)
	for _, schema := range v.schemas {
		placed := schema.Placed()
		var check treediff.ValidateSchema
		check.Check(merged.Tree(), placed)
		clashes = append(clashes, check.Clashes()...)
		merged.Merge(placed)
	}
	return clashes
}

// ValidateProvider returns every declared key that is missing from the
// provider's data although required, or whose value cannot be
// converted to the declared kind.
func (v *SchemaValidator) ValidateProvider(provider *Provider) []Violation {
	var violations []Violation
	for _, schema := range v.schemas {
		data := tree.New()
		if schema.Key == "" {
			data = provider.Data()
		} else if subtree, ok := provider.Data().Subtree(schema.Key); ok {
			data = subtree
		} else if value, ok := provider.Data().Lookup(schema.Key); ok && value != nil {
			violations = append(violations, Violation{Key: schema.Key, Want: KindTree, Value: value})
			continue
		}
		violations = append(violations, checkLevel(schema.Key, schema.Template, data)...)
	}
	return violations
}

func checkLevel(prefix string, template, data *tree.Tree) []Violation {
	var violations []Violation
	for _, key := range template.Keys() {
		qualified := tree.JoinPath(prefix, key)
		declared, _ := template.Get(key)
		value, present := data.Get(key)
		if present && value == nil {
			present = false
		}

		if subtemplate, ok := declared.(*tree.Tree); ok {
			if !present {
				violations = append(violations, checkLevel(qualified, subtemplate, tree.New())...)
				continue
			}
			subtree, ok := value.(*tree.Tree)
			if !ok {
				violations = append(violations, Violation{Key: qualified, Want: KindTree, Value: value})
				continue
			}
			violations = append(violations, checkLevel(qualified, subtemplate, subtree)...)
			continue
		}

		kind := KindOf(declared)
		if !present {
			if _, required := declared.(RequiredValue); required {
				violations = append(violations, Violation{Key: qualified, Want: kind, Missing: true})
			}
			continue
		}
		if _, ok := convert(value, kind); !ok {
			violations = append(violations, Violation{Key: qualified, Want: kind, Value: value})
		}
	}
	return violations
}
