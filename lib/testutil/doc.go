// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for stagehand packages.
//
// [WriteFile] and [WriteTree] lay out settings hierarchies and package
// directories under a test's temporary directory. [Executable] writes a
// small shell script that launch tests use as a target program.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern for tests that drive transactions or spawned children from
// another goroutine, so individual tests do not call time.After
// directly.
//
// [UniqueID] returns monotonically increasing identifiers for tests
// that need distinct names without consulting the clock.
//
// All helpers call t.Fatalf on failure; test setup failures are not
// recoverable.
package testutil
