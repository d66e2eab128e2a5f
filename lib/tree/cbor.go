// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"

	"github.com/bureau-foundation/stagehand/lib/codec"
)

// cborTag marks an order-preserving mapping. A plain CBOR map would be
// key-sorted by the deterministic encoder, losing declaration order.
// The content is an array of [key, value] pairs.
const cborTag = 47201

// MarshalCBOR implements cbor.Marshaler.
func (t *Tree) MarshalCBOR() ([]byte, error) {
	entries := make([]any, 0, t.Len())
	if t != nil {
		for _, key := range t.keys {
			entries = append(entries, []any{key, t.values[key]})
		}
	}
	return codec.Marshal(codec.Tag{Number: cborTag, Content: entries})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *Tree) UnmarshalCBOR(data []byte) error {
	var decoded any
	if err := codec.Unmarshal(data, &decoded); err != nil {
		return err
	}
	node, err := fromCBOR(decoded)
	if err != nil {
		return err
	}
	decodedTree, ok := node.(*Tree)
	if !ok {
		return fmt.Errorf("CBOR data is a %T, not a tree", node)
	}
	*t = *decodedTree
	return nil
}

func fromCBOR(value any) (any, error) {
	switch typed := value.(type) {
	case codec.Tag:
		if typed.Number != cborTag {
			return nil, fmt.Errorf("unexpected CBOR tag %d", typed.Number)
		}
		entries, ok := typed.Content.([]any)
		if !ok {
			return nil, fmt.Errorf("tree tag content is a %T, not an array", typed.Content)
		}
		result := New()
		for index, entry := range entries {
			pair, ok := entry.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("tree entry %d is not a [key, value] pair", index)
			}
			key, ok := pair[0].(string)
			if !ok {
				return nil, fmt.Errorf("tree entry %d has a %T key", index, pair[0])
			}
			child, err := fromCBOR(pair[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			result.Set(key, child)
		}
		return result, nil
	case []any:
		list := make([]any, len(typed))
		for index, element := range typed {
			child, err := fromCBOR(element)
			if err != nil {
				return nil, err
			}
			list[index] = child
		}
		return list, nil
	default:
		return Normalize(value), nil
	}
}
