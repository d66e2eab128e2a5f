// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bureau-foundation/stagehand/lib/tree"
)

// convert coerces a data value to kind. The boolean result is false
// when no conversion exists.
func convert(value any, kind Kind) (any, bool) {
	value = tree.Normalize(value)
	switch kind {
	case KindAny:
		return value, true
	case KindString:
		switch typed := value.(type) {
		case string:
			return typed, true
		case int64:
			return strconv.FormatInt(typed, 10), true
		case float64:
			return strconv.FormatFloat(typed, 'g', -1, 64), true
		case bool:
			return strconv.FormatBool(typed), true
		}
	case KindInt:
		switch typed := value.(type) {
		case int64:
			return typed, true
		case float64:
			if typed == math.Trunc(typed) && !math.IsInf(typed, 0) {
				return int64(typed), true
			}
		case string:
			if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 0, 64); err == nil {
				return parsed, true
			}
		}
	case KindFloat:
		switch typed := value.(type) {
		case float64:
			return typed, true
		case int64:
			return float64(typed), true
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
				return parsed, true
			}
		}
	case KindBool:
		switch typed := value.(type) {
		case bool:
			return typed, true
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(typed)); err == nil {
				return parsed, true
			}
		}
	case KindList:
		switch typed := value.(type) {
		case []any:
			return typed, true
		case nil:
			return []any{}, true
		case string:
			return []any{typed}, true
		}
	case KindTree:
		switch typed := value.(type) {
		case *tree.Tree:
			return typed, true
		case nil:
			return tree.New(), true
		}
	}
	return nil, false
}

// stringList converts a list value to strings.
func stringList(key string, value any) ([]string, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, &TypeError{Key: key, Want: KindList, Value: value}
	}
	result := make([]string, len(list))
	for index, element := range list {
		converted, ok := convert(element, KindString)
		if !ok {
			return nil, &TypeError{Key: fmt.Sprintf("%s[%d]", key, index), Want: KindString, Value: element}
		}
		result[index] = converted.(string)
	}
	return result, nil
}
