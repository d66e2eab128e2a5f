// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ctxstack

import (
	"github.com/bureau-foundation/stagehand/lib/settings"
	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Context is one named layer: settings plus a service registry.
//
// Settings are conceptually frozen once the context is on a stack;
// further changes are made by pushing another context. A caller that
// does modify the settings of a stacked context must call
// [Stack.Invalidate].
type Context struct {
	name     string
	settings *settings.Modifier
	registry registry
	files    []settings.FileSource
}

// New returns an empty context.
func New(name string) *Context {
	return &Context{name: name, settings: settings.NewModifier(nil)}
}

// NewWithSettings returns a context holding a copy of data. Lock
// markers in data are kept so they take effect when the stack merges.
func NewWithSettings(name string, data *tree.Tree, schemas ...*settings.Schema) *Context {
	return &Context{name: name, settings: settings.NewModifier(data, schemas...)}
}

// Name returns the context name.
func (c *Context) Name() string {
	return c.name
}

// Settings returns the context's settings store.
func (c *Context) Settings() *settings.Modifier {
	return c.settings
}

// Files returns the settings files this context loaded.
func (c *Context) Files() []settings.FileSource {
	return c.files
}

func (c *Context) String() string {
	return c.name
}
