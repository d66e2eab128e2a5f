// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filehash computes content hashes of configuration files.
//
// The launcher records the hash of every settings file it loads. A
// context stack refuses to load the same content twice, even when the
// file is reached through two overlapping directory hierarchies or a
// symlink, and a launched child receives the recorded hashes so it can
// skip files its parent already merged.
//
// Hashes are BLAKE3 in keyed mode with a fixed domain key, so a settings
// file hash never collides with a hash of the same bytes computed for
// another purpose.
package filehash
