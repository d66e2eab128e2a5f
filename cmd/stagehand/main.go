// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// stagehand launches pipeline applications in a resolved context. See
// package commands for the command tree.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/bureau-foundation/stagehand/cmd/stagehand/commands"
	"github.com/bureau-foundation/stagehand/lib/process"
)

func main() {
	os.Exit(process.Run(run))
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return commands.Main(ctx, commands.DefaultRuntime(), os.Args)
}
