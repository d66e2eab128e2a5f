// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package procctl turns a package declaration into a running process.
//
// Packages are declared in settings under "packages.<name>": a version,
// the packages it requires (optionally version constrained), packages
// it excludes, the executable, its arguments and working directory,
// environment directives, and references to setup actions declared
// under "actions.<type>.<name>". A launch proceeds in fixed steps, each
// one observable through [Controller.State]:
//
//   - [ParseArguments] intercepts every argument starting with "---";
//     "---key.path=value" arguments become a commandline settings layer
//     that overrides everything else.
//   - [Flatten] walks the requires graph depth first, dependencies
//     before dependents, applying exclusions and version constraints.
//   - Each flattened package pushes a "package:<name>" context carrying
//     its settings block onto the [ctxstack.Stack].
//   - [ComposeEnvironment] applies set/append/prepend directives in
//     package order. A value ending in "!" locks the variable against
//     every later directive; "{VAR}" references are expanded against the
//     environment composed so far.
//   - Referenced actions run as one [transaction.Transaction]: any
//     failure rolls back the actions already applied and aborts the
//     launch.
//   - The process is started in the [LaunchMode] the [Delegate] picks,
//     with introspection variables describing the launch added to its
//     environment (see [EncodeIntrospection]).
//
// A process launched this way can read its introspection back with
// [ReadIntrospection] and, when its working context changes, verify
// with [CheckCompatibility] or [GuardContextChange] that the new
// context still flattens to the same packages.
//
// Delegates customize path handling, value resolution, launch mode and
// child I/O. They are registered as [ctxstack.Type] values under the
// [Delegate] interface and selected by the root package's "delegate"
// field. Action types are registered instances of [ActionType];
// [RegisterBuiltins] installs the default delegate and the built-in
// mkdir, copy, symlink, write, command and decrypt actions.
package procctl
