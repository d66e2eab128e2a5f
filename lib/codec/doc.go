// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides stagehand's standard CBOR encoding configuration.
//
// stagehand uses CBOR wherever it hands structured data to another
// stagehand process rather than to a human: the resolved settings tree
// carried in a launched child's environment, and the map of loaded
// configuration file hashes. Human-facing formats (settings files, CLI
// output, the process metadata variable) are YAML or JSON.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. Same
// logical data always produces identical bytes, which keeps the
// environment payload stable across launches of an unchanged
// configuration.
//
// The decoder is configured for schema-less data: maps decode to
// map[string]any and integers decode to int64, matching the canonical
// scalar types of package tree. Unregistered tags decode to [Tag], which
// is how package tree recognizes its order-preserving mapping encoding.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
