// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treediff

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// Entry is one change in a [DiffIndex].
type Entry struct {
	// Key is the dotted path of the changed key.
	Key  string
	Kind ChangeKind
	// Left is the previous value, or Absent for additions.
	Left any
	// Right is the current value, or Absent for deletions.
	Right any
}

// DiffIndex collects every non-trivial change of a diff into an ordered
// record that can be queried and rendered.
type DiffIndex struct {
	Base

	entries []Entry
}

var _ Delegate = (*DiffIndex)(nil)

// Compare returns the index of the differences between left and right.
func Compare(left, right *tree.Tree) *DiffIndex {
	index := &DiffIndex{}
	Diff(index, left, right)
	return index
}

func (d *DiffIndex) RegisterChange(kind ChangeKind, key string, left, right any) {
	if kind == Unchanged {
		return
	}
	switch kind {
	case Added:
		left = Absent
	case Deleted:
		right = Absent
	}
	d.entries = append(d.entries, Entry{
		Key:   d.QualifiedKey(key),
		Kind:  kind,
		Left:  tree.Clone(left),
		Right: tree.Clone(right),
	})
}

// Entries returns the recorded changes in the order they were reported.
func (d *DiffIndex) Entries() []Entry {
	return d.entries
}

// Empty reports whether no change was recorded.
func (d *DiffIndex) Empty() bool {
	return len(d.entries) == 0
}

// Lookup returns the entries whose key is key or lies below it.
func (d *DiffIndex) Lookup(key string) []Entry {
	var result []Entry
	for _, entry := range d.entries {
		if entry.Key == key || strings.HasPrefix(entry.Key, key+tree.Separator) {
			result = append(result, entry)
		}
	}
	return result
}

// ChangedKeys returns the distinct changed keys, sorted.
func (d *DiffIndex) ChangedKeys() []string {
	seen := make(map[string]struct{}, len(d.entries))
	var keys []string
	for _, entry := range d.entries {
		if _, ok := seen[entry.Key]; ok {
			continue
		}
		seen[entry.Key] = struct{}{}
		keys = append(keys, entry.Key)
	}
	sort.Strings(keys)
	return keys
}

// Render returns a multi-line report, one change per line, sorted by
// key:
//
//	+ packages.nuke.version: "15.1"
//	- packages.maya
//	~ packages.houdini.version: "20.0" -> "20.5"
func (d *DiffIndex) Render() string {
	entries := make([]Entry, len(d.entries))
	copy(entries, d.entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})

	var builder strings.Builder
	for _, entry := range entries {
		switch entry.Kind {
		case Added:
			fmt.Fprintf(&builder, "+ %s: %s\n", entry.Key, formatValue(entry.Right))
		case Deleted:
			fmt.Fprintf(&builder, "- %s: %s\n", entry.Key, formatValue(entry.Left))
		case Modified:
			fmt.Fprintf(&builder, "~ %s: %s -> %s\n", entry.Key, formatValue(entry.Left), formatValue(entry.Right))
		}
	}
	return builder.String()
}

// formatValue renders a node on one line.
func formatValue(value any) string {
	switch typed := value.(type) {
	case absentNode:
		return "<absent>"
	case nil:
		return "null"
	case string:
		return strconv.Quote(typed)
	case *tree.Tree:
		parts := make([]string, 0, typed.Len())
		for _, key := range typed.Keys() {
			child, _ := typed.Get(key)
			parts = append(parts, key+": "+formatValue(child))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(typed))
		for index, element := range typed {
			parts[index] = formatValue(element)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(typed)
	}
}
