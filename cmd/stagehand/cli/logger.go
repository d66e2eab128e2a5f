// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bureau-foundation/stagehand/lib/transaction"
)

// LevelTrace is below debug: every settings lookup, directive and
// operation step is logged. Enabled by "---trace".
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a configured level name to a slog level. Accepted
// names are trace, debug, info, warn, error and critical.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return transaction.LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// NewCommandLogger creates the launcher's logger on stderr at level.
// When stderr is a terminal, uses slog.TextHandler for human-readable
// output. When stderr is piped or redirected (render farm jobs, CI),
// uses slog.JSONHandler so that pipeline log collectors can parse it.
func NewCommandLogger(level slog.Level) *slog.Logger {
	return NewLogger(os.Stderr, level)
}

// NewLogger is [NewCommandLogger] writing to w. Only a terminal *os.File
// gets the text handler.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	file, ok := w.(*os.File)
	return newLogger(w, ok && term.IsTerminal(int(file.Fd())), level)
}

func newLogger(w io.Writer, text bool, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: levelNames,
	}
	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// levelNames gives the custom levels readable names instead of
// "DEBUG-4" and "ERROR+4".
func levelNames(groups []string, attr slog.Attr) slog.Attr {
	if attr.Key != slog.LevelKey || len(groups) > 0 {
		return attr
	}
	level, ok := attr.Value.Any().(slog.Level)
	if !ok {
		return attr
	}
	switch level {
	case LevelTrace:
		attr.Value = slog.StringValue("TRACE")
	case transaction.LevelCritical:
		attr.Value = slog.StringValue("CRITICAL")
	}
	return attr
}
