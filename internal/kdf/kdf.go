// Package kdf derives domain-separated symmetric keys from the PAKE
// session secret via HKDF-SHA256.
package kdf

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the fixed output length this core uses for every derived key.
const KeySize = 32

// Context labels used for directional key separation (spec.md §4.2, §4.7).
const (
	ContextSender   = "sender"
	ContextReceiver = "receiver"
)

// Derive runs HKDF-Extract-then-Expand over SHA-256 with an empty salt,
// returning a KeySize-byte key bound to the given context string.
func Derive(secret []byte, context string) ([KeySize]byte, error) {
	var out [KeySize]byte

	reader := hkdf.New(sha256.New, secret, nil, []byte(context))
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		return out, fmt.Errorf("kdf: derive %q: %w", context, err)
	}

	return out, nil
}

// Zero overwrites key material in place. Callers should defer this once a
// derived key is no longer needed.
func Zero(key *[KeySize]byte) {
	for i := range key {
		key[i] = 0
	}
}
