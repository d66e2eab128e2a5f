// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import "fmt"

// Normalize converts a Go value into canonical node form: integers
// become int64, floats become float64, string slices and other slices
// of canonical values become []any, and maps become trees. Values that
// are already canonical (including *Tree) are returned unchanged.
func Normalize(value any) any {
	switch typed := value.(type) {
	case nil, string, bool, int64, float64, *Tree:
		return value
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint64:
		return int64(typed)
	case float32:
		return float64(typed)
	case Tree:
		return &typed
	case []string:
		result := make([]any, len(typed))
		for index, element := range typed {
			result[index] = element
		}
		return result
	case []any:
		result := make([]any, len(typed))
		for index, element := range typed {
			result[index] = Normalize(element)
		}
		return result
	case map[string]any:
		return FromMap(typed)
	case map[string]string:
		converted := make(map[string]any, len(typed))
		for key, element := range typed {
			converted[key] = element
		}
		return FromMap(converted)
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for key, element := range typed {
			converted[fmt.Sprint(key)] = element
		}
		return FromMap(converted)
	default:
		return value
	}
}
