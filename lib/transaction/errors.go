// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"errors"
	"fmt"
)

// ErrAborted is wrapped by every [AbortError].
var ErrAborted = errors.New("transaction aborted")

// AbortError reports a cooperative abort.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason == "" {
		return ErrAborted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAborted, e.Reason)
}

func (e *AbortError) Unwrap() error {
	return ErrAborted
}

// OperationError reports the operation that made a transaction fail.
type OperationError struct {
	// Index is the position of the operation in the transaction.
	Index int
	// Operation is the operation name.
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s): %v", e.Index, e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// RollbackError reports an operation whose rollback failed.
type RollbackError struct {
	Index     int
	Operation string
	Err       error
	// Cause is the failure that triggered the rollback, if any.
	Cause error
}

func (e *RollbackError) Error() string {
	message := fmt.Sprintf("rolling back operation %d (%s): %v", e.Index, e.Operation, e.Err)
	if e.Cause != nil {
		message += fmt.Sprintf(" (rollback triggered by: %v)", e.Cause)
	}
	return message
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}
