// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// LevelCritical is the log level of rollback failures.
const LevelCritical = slog.LevelError + 4

// Operation is one step of a transaction.
//
// The transaction passed to Apply and Rollback is the one running the
// operation; operations use it for the dry-run flag, the logger, the
// context and abort checks, and must not retain it.
type Operation interface {
	// Name describes the operation in logs and errors.
	Name() string

	// Apply performs the operation. In dry-run mode it only checks
	// preconditions.
	Apply(tx *Transaction) error

	// Rollback undoes whatever Apply changed. It is called for the
	// failing operation too and must do nothing for changes that never
	// happened.
	Rollback(tx *Transaction) error
}

// Config configures a [Transaction].
type Config struct {
	// DryRun makes operations validate without side effects and skips
	// rollback.
	DryRun bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Progress defaults to a no-op reporter.
	Progress Progress
}

// Transaction runs operations in order with rollback on failure.
type Transaction struct {
	name       string
	operations []Operation
	dryRun     bool
	logger     *slog.Logger
	progress   Progress

	// mu serializes Apply and Rollback. IsRunning probes it.
	mu sync.Mutex

	performed  bool
	rolledBack bool
	err        error
	ctx        context.Context

	aborted     atomic.Bool
	abortReason atomic.Pointer[string]
	rollingBack atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
	// result is the value the finished Apply returned, read by Wait.
	result error
}

// New returns an empty transaction.
func New(name string, config Config) *Transaction {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := config.Progress
	if progress == nil {
		progress = discardProgress{}
	}
	return &Transaction{
		name:     name,
		dryRun:   config.DryRun,
		logger:   logger,
		progress: progress,
		ctx:      context.Background(),
		done:     make(chan struct{}),
	}
}

// Name returns the transaction name.
func (t *Transaction) Name() string {
	return t.name
}

// DryRun reports whether the transaction only validates.
func (t *Transaction) DryRun() bool {
	return t.dryRun
}

// Logger returns the transaction's logger.
func (t *Transaction) Logger() *slog.Logger {
	return t.logger
}

// Context returns the context of the running Apply or Rollback.
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Add appends operations. Operations cannot be added once the
// transaction has been applied.
func (t *Transaction) Add(operations ...Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.performed {
		return fmt.Errorf("transaction %q already applied", t.name)
	}
	t.operations = append(t.operations, operations...)
	return nil
}

// Len returns the number of operations.
func (t *Transaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.operations)
}

// Apply runs every operation in order. A failure rolls back the
// operations up to and including the failing one, is recorded for
// [Transaction.Err] and is not returned. Apply returns an error only
// when that rollback fails. Applying an already applied transaction
// does nothing.
func (t *Transaction) Apply(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.performed {
		return nil
	}
	t.performed = true
	t.result = t.apply(ctx)
	t.doneOnce.Do(func() { close(t.done) })
	return t.result
}

func (t *Transaction) apply(ctx context.Context) error {
	t.ctx = ctx
	defer func() { t.ctx = context.Background() }()

	t.progress.Begin(len(t.operations))
	for index, operation := range t.operations {
		err := t.CheckAbort()
		if err == nil {
			t.progress.Step(index, operation.Name())
			err = operation.Apply(t)
		}
		if err == nil {
			err = t.CheckAbort()
		}
		if err == nil {
			continue
		}

		t.err = &OperationError{Index: index, Operation: operation.Name(), Err: err}
		t.progress.Finish(t.err)
		if t.dryRun {
			return nil
		}
		return t.rollbackThrough(index, t.err)
	}

	t.progress.Finish(nil)
	return nil
}

// Rollback undoes every operation of an applied transaction in reverse
// order. It does nothing in dry-run mode, before Apply, or when the
// transaction was already rolled back.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dryRun {
		t.logger.Debug("dry run: rollback skipped", "transaction", t.name)
		return nil
	}
	if !t.performed || t.rolledBack {
		return nil
	}
	t.ctx = ctx
	defer func() { t.ctx = context.Background() }()
	return t.rollbackThrough(len(t.operations)-1, nil)
}

// rollbackThrough rolls back operations last down to 0. The caller
// holds mu.
func (t *Transaction) rollbackThrough(last int, cause error) error {
	t.rollingBack.Store(true)
	defer t.rollingBack.Store(false)
	t.rolledBack = true

	for index := last; index >= 0; index-- {
		operation := t.operations[index]
		t.progress.RollingBack(index, operation.Name())
		if err := operation.Rollback(t); err != nil {
			rollbackErr := &RollbackError{Index: index, Operation: operation.Name(), Err: err, Cause: cause}
			t.logger.Log(context.Background(), LevelCritical, "rollback failed, external state is inconsistent",
				"transaction", t.name,
				"operation", operation.Name(),
				"error", err,
			)
			return rollbackErr
		}
	}
	return nil
}

// Abort requests cooperative cancellation. It is ignored while the
// transaction is rolling back.
func (t *Transaction) Abort(reason string) {
	if t.rollingBack.Load() {
		t.logger.Debug("abort ignored during rollback", "transaction", t.name, "reason", reason)
		return
	}
	t.abortReason.Store(&reason)
	t.aborted.Store(true)
}

// CheckAbort returns an [*AbortError] when the transaction was aborted
// or its context was cancelled.
func (t *Transaction) CheckAbort() error {
	if t.aborted.Load() {
		reason := ""
		if stored := t.abortReason.Load(); stored != nil {
			reason = *stored
		}
		return &AbortError{Reason: reason}
	}
	if err := t.ctx.Err(); err != nil {
		return &AbortError{Reason: err.Error()}
	}
	return nil
}

// Succeeded reports whether the transaction was applied without
// failure.
func (t *Transaction) Succeeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.performed && t.err == nil
}

// Err returns the recorded failure, an [*OperationError].
func (t *Transaction) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Performed reports whether Apply has run.
func (t *Transaction) Performed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.performed
}

// Start runs Apply on a new goroutine.
func (t *Transaction) Start(ctx context.Context) {
	go t.Apply(ctx)
}

// IsRunning reports whether Apply or Rollback currently holds the
// transaction. It never blocks.
func (t *Transaction) IsRunning() bool {
	if t.mu.TryLock() {
		t.mu.Unlock()
		return false
	}
	return true
}

// Wait blocks until the transaction has been applied and returns what
// Apply returned.
func (t *Transaction) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}
