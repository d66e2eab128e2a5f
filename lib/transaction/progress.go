// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"log/slog"
)

// Progress receives a transaction's progress.
type Progress interface {
	// Begin is called once before the first operation.
	Begin(total int)
	// Step is called before operation index runs.
	Step(index int, name string)
	// RollingBack is called before operation index is rolled back.
	RollingBack(index int, name string)
	// Finish is called once with the recorded failure, or nil.
	Finish(err error)
}

// LogProgress reports progress to a logger.
type LogProgress struct {
	logger *slog.Logger
	name   string
	total  int
}

// NewLogProgress returns a progress reporter for the named transaction.
// A nil logger uses slog.Default().
func NewLogProgress(logger *slog.Logger, name string) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, name: name}
}

func (p *LogProgress) Begin(total int) {
	p.total = total
	p.logger.Debug("transaction started", "transaction", p.name, "operations", total)
}

func (p *LogProgress) Step(index int, name string) {
	p.logger.Info("applying operation",
		"transaction", p.name,
		"step", index+1,
		"of", p.total,
		"operation", name,
	)
}

func (p *LogProgress) RollingBack(index int, name string) {
	p.logger.Warn("rolling back operation", "transaction", p.name, "step", index+1, "operation", name)
}

func (p *LogProgress) Finish(err error) {
	if err != nil {
		p.logger.Error("transaction failed", "transaction", p.name, "error", err)
		return
	}
	p.logger.Debug("transaction finished", "transaction", p.name)
}

type discardProgress struct{}

func (discardProgress) Begin(int)               {}
func (discardProgress) Step(int, string)        {}
func (discardProgress) RollingBack(int, string) {}
func (discardProgress) Finish(error)            {}
