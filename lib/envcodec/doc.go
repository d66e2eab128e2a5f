// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envcodec carries binary payloads through environment
// variables.
//
// A payload is compressed, prefixed with a one-byte compression tag and
// its uncompressed length, and base64 encoded so it survives any
// environment. [Encode] tries zstd and LZ4 and keeps the smaller result;
// payloads that do not compress are stored as is.
//
// Environments limit the size of a single variable (Windows caps a
// variable at 32767 characters). A [Chunker] splits an encoded value
// that exceeds its capacity into chunk variables with unique generated
// names and stores a reference ("@chunks:NAME1,NAME2") in the original
// variable. [Join] reassembles the value from any lookup function, such
// as os.LookupEnv.
package envcodec
