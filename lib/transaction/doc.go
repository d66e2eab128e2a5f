// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transaction runs side-effecting setup steps so that either all
// of them take effect or, after a failure, none do.
//
// A [Transaction] holds an ordered list of [Operation] values.
// [Transaction.Apply] runs them in order. When one fails, or the
// transaction is aborted, Apply rolls back every operation up to and
// including the failing one in reverse order and records the failure:
// Apply itself returns nil and the failure is read from
// [Transaction.Err] and [Transaction.Succeeded]. The one error Apply
// does return is a [*RollbackError]: a rollback that fails leaves the
// outside world in an unknown state, so it is logged at [LevelCritical]
// and handed to the caller.
//
// Operations must tolerate rollback without a preceding apply, or after
// an apply that failed halfway, by doing nothing for the parts that
// never happened. The built-in operations ([CreateDirectory],
// [WriteFile], [CopyFile], [Symlink], [Command]) remember exactly what
// they changed and undo only that.
//
// In dry-run mode operations check their preconditions (a destination
// of the wrong type, a missing source or executable) without changing
// anything, and rollback is skipped entirely.
//
// Abort is cooperative. [Transaction.Abort] sets a flag that Apply
// checks before and after every operation; long-running operations may
// poll [Transaction.CheckAbort] themselves. An abort requested while the
// transaction is rolling back is ignored.
//
// A transaction can run on its own goroutine with [Transaction.Start];
// [Transaction.IsRunning] probes it without blocking and
// [Transaction.Wait] blocks until it finishes.
package transaction
