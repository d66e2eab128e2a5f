// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filehash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of a file's contents.
type Hash [32]byte

// settingsDomainKey is the BLAKE3 key for settings file hashes: the
// ASCII domain name zero-padded to 32 bytes. Changing it invalidates
// every hash handed to running children.
var settingsDomainKey = [32]byte{
	's', 't', 'a', 'g', 'e', 'h', 'a', 'n', 'd', '.', 's', 'e', 't', 't', 'i', 'n',
	'g', 's', '.', 'f', 'i', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func newHasher() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(settingsDomainKey[:])
	if err != nil {
		panic("filehash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// Bytes hashes an in-memory file body.
func Bytes(data []byte) Hash {
	hasher := newHasher()
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// File hashes the file at path, streaming its contents.
func File(path string) (Hash, error) {
	file, err := os.Open(path)
	if err != nil {
		return Hash{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := newHasher()
	if _, err := io.Copy(hasher, file); err != nil {
		return Hash{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash, nil
}

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters, for log output.
func (h Hash) Short() string {
	return h.String()[:12]
}

// Parse decodes a 64-character hex string.
func Parse(text string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return hash, fmt.Errorf("parsing file hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("file hash is %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// Set maps file hashes to the path each was first loaded from.
type Set map[Hash]string

// Add records hash for path. It returns false, leaving the set
// unchanged, when the hash is already present.
func (s Set) Add(hash Hash, path string) bool {
	if _, exists := s[hash]; exists {
		return false
	}
	s[hash] = path
	return true
}

// Has reports whether hash was recorded.
func (s Set) Has(hash Hash) bool {
	_, ok := s[hash]
	return ok
}

// Merge adds every entry of other that is not already present.
func (s Set) Merge(other Set) {
	for hash, path := range other {
		s.Add(hash, path)
	}
}

// Strings returns the set keyed by hex hash, the form used on the wire.
func (s Set) Strings() map[string]string {
	result := make(map[string]string, len(s))
	for hash, path := range s {
		result[hash.String()] = path
	}
	return result
}

// FromStrings is the inverse of [Set.Strings].
func FromStrings(entries map[string]string) (Set, error) {
	result := make(Set, len(entries))
	for text, path := range entries {
		hash, err := Parse(text)
		if err != nil {
			return nil, err
		}
		result[hash] = path
	}
	return result, nil
}

// Paths returns the recorded paths, sorted.
func (s Set) Paths() []string {
	paths := make([]string, 0, len(s))
	for _, path := range s {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
