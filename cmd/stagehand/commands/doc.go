// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the stagehand command tree and the launch
// flow behind it.
//
// The binary has two faces. Invoked as "stagehand" it is a CLI with
// subcommands for launching and for inspecting resolution (resolve,
// env, packages, inspect). Invoked through a symlink with any other
// name, the name (extension stripped) is the package to launch and
// every argument belongs to the launch: "---" arguments are launcher
// options and overrides, everything else is forwarded.
//
// The default context stack is created here and nowhere else: a
// "builtins" context holding the default delegate and the built-in
// action types, then the "site" context read from the configuration
// directories. The controller pushes the package and commandline
// contexts on top.
package commands
