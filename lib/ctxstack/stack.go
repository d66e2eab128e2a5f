// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ctxstack

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/stagehand/lib/filehash"
	"github.com/bureau-foundation/stagehand/lib/settings"
	"github.com/bureau-foundation/stagehand/lib/tree"
	"github.com/bureau-foundation/stagehand/lib/treediff"
)

// Stack is an ordered list of contexts, bottom first.
type Stack struct {
	contexts []*Context

	// merged[i] is the lock-preserving merge of contexts[0..i]. Entries
	// at or above valid are stale.
	merged []*tree.Tree
	valid  int

	provider *settings.Provider

	// inherited holds file hashes loaded by a parent process.
	inherited filehash.Set

	logger *slog.Logger
}

// NewStack returns an empty stack. A nil logger uses slog.Default().
func NewStack(logger *slog.Logger) *Stack {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stack{logger: logger, inherited: make(filehash.Set)}
}

// Logger returns the stack's logger.
func (s *Stack) Logger() *slog.Logger {
	return s.logger
}

// Len returns the number of contexts.
func (s *Stack) Len() int {
	return len(s.contexts)
}

// Top returns the topmost context, or nil for an empty stack.
func (s *Stack) Top() *Context {
	if len(s.contexts) == 0 {
		return nil
	}
	return s.contexts[len(s.contexts)-1]
}

// Contexts returns the contexts bottom first. The slice must not be
// modified.
func (s *Stack) Contexts() []*Context {
	return s.contexts
}

// Index returns the position of c, or -1.
func (s *Stack) Index(c *Context) int {
	for index, existing := range s.contexts {
		if existing == c {
			return index
		}
	}
	return -1
}

// Find returns the topmost context with the given name.
func (s *Stack) Find(name string) (*Context, bool) {
	for index := len(s.contexts) - 1; index >= 0; index-- {
		if s.contexts[index].name == name {
			return s.contexts[index], true
		}
	}
	return nil, false
}

// Push adds c on top of the stack. A context can be on a stack once.
func (s *Stack) Push(c *Context) error {
	if s.Index(c) >= 0 {
		return fmt.Errorf("context %q is already on the stack", c.name)
	}
	s.contexts = append(s.contexts, c)
	s.provider = nil
	s.logger.Debug("context pushed", "context", c.name, "depth", len(s.contexts))
	return nil
}

// PushNew creates an empty context, pushes it and returns it.
func (s *Stack) PushNew(name string) *Context {
	c := New(name)
	// A fresh context cannot already be on the stack.
	_ = s.Push(c)
	return c
}

// Pop removes contexts from the top until the stack holds untilSize
// contexts and returns the removed contexts in their original order, so
// they can be pushed again in sequence. A negative untilSize pops one
// context.
func (s *Stack) Pop(untilSize int) []*Context {
	if untilSize < 0 {
		untilSize = len(s.contexts) - 1
	}
	if untilSize < 0 || untilSize >= len(s.contexts) {
		return nil
	}
	popped := make([]*Context, len(s.contexts)-untilSize)
	copy(popped, s.contexts[untilSize:])
	clear(s.contexts[untilSize:])
	s.contexts = s.contexts[:untilSize]
	s.invalidateFrom(untilSize)
	s.logger.Debug("contexts popped", "count", len(popped), "depth", untilSize)
	return popped
}

// Insert places c at index, shifting the contexts above it up.
func (s *Stack) Insert(index int, c *Context) error {
	if index < 0 || index > len(s.contexts) {
		return fmt.Errorf("insert index %d out of range [0, %d]", index, len(s.contexts))
	}
	if s.Index(c) >= 0 {
		return fmt.Errorf("context %q is already on the stack", c.name)
	}
	s.contexts = append(s.contexts, nil)
	copy(s.contexts[index+1:], s.contexts[index:])
	s.contexts[index] = c
	s.invalidateFrom(index)
	return nil
}

// Remove takes c off the stack wherever it is and reports whether it
// was present.
func (s *Stack) Remove(c *Context) bool {
	index := s.Index(c)
	if index < 0 {
		return false
	}
	s.contexts = append(s.contexts[:index], s.contexts[index+1:]...)
	s.invalidateFrom(index)
	return true
}

// Invalidate discards the cached settings at and above c. Call it after
// modifying the settings of a context that is already on the stack.
func (s *Stack) Invalidate(c *Context) {
	if index := s.Index(c); index >= 0 {
		s.invalidateFrom(index)
	}
}

func (s *Stack) invalidateFrom(index int) {
	s.valid = min(s.valid, index)
	s.provider = nil
}

// merge brings the per-depth cache up to date and returns the merged
// tree of the whole stack, lock markers intact.
func (s *Stack) merge() *tree.Tree {
	if len(s.merged) > len(s.contexts) {
		clear(s.merged[len(s.contexts):])
		s.merged = s.merged[:len(s.contexts)]
	}
	for len(s.merged) < len(s.contexts) {
		s.merged = append(s.merged, nil)
	}
	if s.valid > len(s.contexts) {
		s.valid = len(s.contexts)
	}

	for index := s.valid; index < len(s.contexts); index++ {
		var below *tree.Tree
		if index > 0 {
			below = s.merged[index-1]
		}
		merge := treediff.NewAdditiveMerge(below)
		merge.Merge(s.contexts[index].settings.Data())
		if err := merge.Err(); err != nil {
			s.logger.Warn("merging context settings", "context", s.contexts[index].name, "error", err)
		}
		s.merged[index] = merge.Tree()
	}
	s.valid = len(s.contexts)

	if len(s.contexts) == 0 {
		return tree.New()
	}
	return s.merged[len(s.contexts)-1]
}

// Merged returns the merged settings of the whole stack with lock
// markers intact. The tree is owned by the stack.
func (s *Stack) Merged() *tree.Tree {
	return s.merge()
}

// Settings returns the aggregated settings of the stack, lock markers
// stripped, with the schemas of every context registered.
func (s *Stack) Settings() *settings.Provider {
	if s.provider != nil && s.valid == len(s.contexts) {
		return s.provider
	}
	provider := settings.NewProvider(treediff.StripTreeLocks(s.merge()))
	for _, c := range s.contexts {
		provider.AddSchema(c.settings.Schemas()...)
	}
	s.provider = provider
	return provider
}

// InheritFiles records file hashes loaded by a parent process. Such
// files are skipped by hierarchical contexts.
func (s *Stack) InheritFiles(files filehash.Set) {
	s.inherited.Merge(files)
}

// Files returns every file hash loaded by a context on the stack or
// inherited from a parent.
func (s *Stack) Files() filehash.Set {
	result := make(filehash.Set, len(s.inherited))
	result.Merge(s.inherited)
	for _, c := range s.contexts {
		for _, file := range c.files {
			result.Add(file.Hash, file.Path)
		}
	}
	return result
}

// HasFile reports whether content with hash is already loaded.
func (s *Stack) HasFile(hash filehash.Hash) bool {
	if s.inherited.Has(hash) {
		return true
	}
	for _, c := range s.contexts {
		for _, file := range c.files {
			if file.Hash == hash {
				return true
			}
		}
	}
	return false
}
