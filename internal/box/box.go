// Package box provides authenticated symmetric encryption for the
// payload step of a rendezvous session: a secretbox (XSalsa20+Poly1305)
// construction with fresh random nonces.
package box

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the secretbox key length.
const KeySize = 32

// NonceSize is the secretbox nonce length.
const NonceSize = 24

// ErrForged is returned by Open when the MAC check fails or the input is
// too short to contain a nonce and tag. Per spec.md §4.6/§7, callers
// MUST treat this as BadCode: the near-certain cause is the two sides
// deriving different session keys from mismatched codes, not tampering.
var ErrForged = errors.New("box: message forged or truncated")

// Seal encrypts plaintext under key, generating a fresh random 24-byte
// nonce and prepending it to the output so Open needs no side channel
// for nonce transport.
func Seal(key *[KeySize]byte, plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("box: generate nonce: %w", err)
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+secretbox.Overhead)
	copy(out, nonce[:])
	out = secretbox.Seal(out, plaintext, &nonce, key)

	return out, nil
}

// Open decrypts a nonce||ciphertext blob produced by Seal. It returns
// ErrForged if the blob is too short or the MAC check fails.
func Open(key *[KeySize]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize+secretbox.Overhead {
		return nil, ErrForged
	}

	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[NonceSize:], &nonce, key)
	if !ok {
		return nil, ErrForged
	}

	return plaintext, nil
}

// Zero overwrites key material in place.
func Zero(key *[KeySize]byte) {
	for i := range key {
		key[i] = 0
	}
}
