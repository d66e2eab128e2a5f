// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stagehand/lib/tree"
	"github.com/bureau-foundation/stagehand/lib/treediff"
)

// SaveMode selects what [Modifier.Save] writes.
type SaveMode int

const (
	// Sparse writes only the keys changed since the base snapshot.
	Sparse SaveMode = iota
	// Full writes the complete current tree.
	Full
)

// Modifier is a [Provider] whose data can be changed. The data at
// construction is kept as the base snapshot that [Modifier.Changes]
// compares against.
type Modifier struct {
	Provider

	base *tree.Tree
}

// NewModifier returns a modifier over a copy of data.
func NewModifier(data *tree.Tree, schemas ...*Schema) *Modifier {
	if data == nil {
		data = tree.New()
	}
	return &Modifier{
		Provider: Provider{data: data.Clone(), schemas: schemas},
		base:     data.Clone(),
	}
}

// SetValue stores value at a dotted key.
func (m *Modifier) SetValue(key string, value any) error {
	if err := m.data.SetPath(key, tree.Clone(tree.Normalize(value))); err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// SetValueBySchema validates values against schema and layers them onto
// the data at the schema key. Locked values already in the data win, as
// they do when merging settings files.
func (m *Modifier) SetValueBySchema(schema *Schema, values *tree.Tree) error {
	if _, err := NewProvider(placeAt(schema.Key, values)).Value(schema); err != nil {
		return fmt.Errorf("validating values for schema %s: %w", schema, err)
	}
	merge := treediff.NewAdditiveMerge(m.data)
	merge.Merge(placeAt(schema.Key, values))
	if err := merge.Err(); err != nil {
		return fmt.Errorf("merging values for schema %s: %w", schema, err)
	}
	m.data = merge.Tree()
	return nil
}

// Merge layers override onto the data with lock-aware additive merging.
func (m *Modifier) Merge(override *tree.Tree) error {
	merge := treediff.NewAdditiveMerge(m.data)
	merge.Merge(override)
	if err := merge.Err(); err != nil {
		return err
	}
	m.data = merge.Tree()
	return nil
}

// Base returns the snapshot taken at construction or the last
// [Modifier.Commit].
func (m *Modifier) Base() *tree.Tree {
	return m.base
}

// Changes returns the keys added or modified since the base snapshot.
// Layering the result onto the base with an additive merge reproduces
// the current data, except for deleted keys, which an additive layer
// cannot express.
func (m *Modifier) Changes() *tree.Tree {
	collector := &changeCollector{changes: tree.New()}
	treediff.Diff(collector, m.base, m.data)
	return collector.changes
}

// Commit makes the current data the new base snapshot.
func (m *Modifier) Commit() {
	m.base = m.data.Clone()
}

// Save writes the data as YAML.
func (m *Modifier) Save(w io.Writer, mode SaveMode) error {
	data := m.data
	if mode == Sparse {
		data = m.Changes()
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return encoder.Close()
}

func placeAt(key string, values *tree.Tree) *tree.Tree {
	if values == nil {
		values = tree.New()
	}
	if key == "" {
		return values.Clone()
	}
	root := tree.New()
	_ = root.SetPath(key, values.Clone())
	return root
}

// changeCollector gathers added and modified leaves into a sparse tree.
type changeCollector struct {
	treediff.Base
	changes *tree.Tree
}

func (c *changeCollector) RegisterChange(kind treediff.ChangeKind, key string, left, right any) {
	if kind != treediff.Added && kind != treediff.Modified {
		return
	}
	_ = c.changes.SetKeys(c.Path(key), tree.Clone(right))
}
