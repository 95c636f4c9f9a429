package pake

import (
	"crypto/sha512"

	"github.com/gtank/ristretto255"
)

// M and N are SPAKE2's two fixed blinding elements, one per role. They
// must be "nothing up my sleeve": generated verifiably from a public
// label so nobody can know their discrete log with respect to the group
// generator. This mirrors the technique the panda PAKE reference uses
// for its group constant groupN (there, SHA-256-seeded Salsa20 output
// over a big-integer group); ristretto255 offers the same idea natively
// via hash-to-group, so the labels are expanded straight into the
// 64-byte uniform input FromUniformBytes requires.
var (
	elementM = ristretto255.NewElement().FromUniformBytes(expandLabel("rendezcode SPAKE2 M"))
	elementN = ristretto255.NewElement().FromUniformBytes(expandLabel("rendezcode SPAKE2 N"))
)

func expandLabel(label string) []byte {
	sum := sha512.Sum512([]byte(label))
	return sum[:]
}

// passwordScalar hashes the shared low-entropy code into a group scalar,
// domain-separated from every other use of SHA-512 in this package.
func passwordScalar(password []byte) *ristretto255.Scalar {
	h := sha512.New()
	h.Write([]byte("rendezcode SPAKE2 w"))
	h.Write(password)
	return ristretto255.NewScalar().FromUniformBytes(h.Sum(nil))
}

// randomScalar draws a uniform ephemeral scalar from an OS-RNG source.
func randomScalar(source []byte) *ristretto255.Scalar {
	return ristretto255.NewScalar().FromUniformBytes(source)
}
