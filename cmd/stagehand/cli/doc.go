// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework of the stagehand binary: a
// [Command] tree parsed with spf13/pflag, typo suggestions for unknown
// commands and flags, the command logger, exit-code carrying errors,
// and terminal styling for human-readable reports.
package cli
