// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed decrypts age-encrypted files for the launcher's
// decrypt action.
//
// Packages may ship license keys, service credentials or other files
// that must not sit in plaintext in a shared software repository. They
// are stored encrypted to the x25519 public keys of the machines or
// users allowed to run the package; the decrypt action writes the
// plaintext into place before launch and removes it again on rollback.
//
// Both binary and ASCII-armored ciphertext are accepted. Identities are
// read from age identity files (one AGE-SECRET-KEY-1... per line,
// comments allowed).
//
// Key exports:
//
//   - [GenerateKeypair]: new x25519 identity and recipient
//   - [Encrypt]: encrypt to recipients, optionally armored
//   - [Decrypt] / [DecryptFile]: decrypt with parsed identities
//   - [ParseIdentities] / [LoadIdentities]: read identity files
package sealed
