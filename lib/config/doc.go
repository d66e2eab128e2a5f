// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML site configuration for the stagehand
// launcher.
//
// Configuration is loaded from a single file specified by either the
// STAGEHAND_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no ~/.config discovery and no automatic
// file search; a launcher started without either runs on [Default].
//
// The site configuration says where package settings are found (search
// roots and the per-level directory name), how the launched child is
// told about its launch (introspection prefix and chunk size), which
// variables of the launcher's own environment the child inherits, and
// which delegate drives a launch when the root package names none.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter: the
// child inherits only an explicit allow-list of variables.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${STAGEHAND_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// This package depends on no other stagehand packages.
package config
