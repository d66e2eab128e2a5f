// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envcodec

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ChunkReference prefixes a variable value that lists chunk variables
// instead of holding the value itself.
const ChunkReference = "@chunks:"

// DefaultCapacity is the default maximum length of one variable value,
// leaving headroom below the Windows limit of 32767 characters.
const DefaultCapacity = 30000

// Chunker splits long values across several variables.
type Chunker struct {
	// Capacity is the maximum length of one value. Zero means
	// DefaultCapacity.
	Capacity int

	// KeyPrefix is prepended to every generated chunk variable name.
	KeyPrefix string

	// NewKey returns a fresh key suffix. Nil uses eight hex characters
	// of a random UUID.
	NewKey func() string
}

func (c Chunker) capacity() int {
	if c.Capacity <= 0 {
		return DefaultCapacity
	}
	return c.Capacity
}

func (c Chunker) newKey() string {
	if c.NewKey != nil {
		return c.NewKey()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Split returns the variables needed to store value under name. A value
// within capacity is returned as the single variable name. A longer
// value is cut into chunks under generated names, and name holds the
// chunk reference. Generated names never collide with each other, with
// name, or with any name for which taken returns true.
func (c Chunker) Split(name, value string, taken func(string) bool) map[string]string {
	capacity := c.capacity()
	if len(value) <= capacity {
		return map[string]string{name: value}
	}

	variables := make(map[string]string)
	var keys []string
	for offset := 0; offset < len(value); offset += capacity {
		end := min(offset+capacity, len(value))

		var key string
		for {
			key = c.KeyPrefix + strings.ToUpper(c.newKey())
			_, used := variables[key]
			if !used && key != name && (taken == nil || !taken(key)) {
				break
			}
		}
		variables[key] = value[offset:end]
		keys = append(keys, key)
	}
	variables[name] = ChunkReference + strings.Join(keys, ",")
	return variables
}

// IsChunked reports whether value is a chunk reference.
func IsChunked(value string) bool {
	return strings.HasPrefix(value, ChunkReference)
}

// ChunkNames returns the chunk variable names a reference lists, or nil
// for a value that is not a reference.
func ChunkNames(value string) []string {
	if !IsChunked(value) {
		return nil
	}
	return strings.Split(strings.TrimPrefix(value, ChunkReference), ",")
}

// Join returns the full value stored under a variable whose content is
// value. References are resolved through lookup; any missing chunk is
// an error.
func Join(value string, lookup func(string) (string, bool)) (string, error) {
	if !IsChunked(value) {
		return value, nil
	}
	var builder strings.Builder
	for _, name := range ChunkNames(value) {
		chunk, ok := lookup(name)
		if !ok {
			return "", fmt.Errorf("chunk variable %s is not set", name)
		}
		builder.WriteString(chunk)
	}
	return builder.String(), nil
}
