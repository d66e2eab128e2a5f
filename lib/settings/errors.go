// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"fmt"
)

// ErrUnknownKey is returned when a key is read that no schema declares.
var ErrUnknownKey = errors.New("key not declared by any schema")

// MissingValueError reports a required key with no value in the data.
type MissingValueError struct {
	Key  string
	Kind Kind
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("required %s value %q is not set", e.Kind, e.Key)
}

// TypeError reports a value that cannot be converted to its declared
// kind.
type TypeError struct {
	Key   string
	Want  Kind
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("value %q: cannot use %#v as %s", e.Key, e.Value, e.Want)
}
