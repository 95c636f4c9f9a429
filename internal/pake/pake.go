// Package pake implements SPAKE2 over the ristretto255 prime-order
// group, with the role-asymmetric identity strings spec.md §4.6
// requires. Each State is consumed exactly once: Start produces the
// outbound wire message, Finish consumes the peer's and produces the
// raw session secret.
package pake

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
)

// Role selects which SPAKE2 primitive (and blinding element) this side
// uses. Per spec.md §4.6, Initiator plays SPAKE2_A, Receiver plays
// SPAKE2_B; both halves share this one implementation.
type Role int

const (
	RoleA Role = iota
	RoleB
)

// SecretSize is the length of the raw session secret Finish returns.
// Callers pass this through internal/kdf, never use it directly.
const SecretSize = 32

var (
	// ErrAlreadyStarted is returned by Start if called more than once.
	ErrAlreadyStarted = errors.New("pake: Start called twice")
	// ErrNotStarted is returned by Finish if Start has not run yet.
	ErrNotStarted = errors.New("pake: Finish called before Start")
	// ErrAlreadyFinished is returned if Finish is called more than once.
	ErrAlreadyFinished = errors.New("pake: Finish called twice")
	// ErrInvalidPeerMessage is returned when the peer's wire message
	// does not decode to a valid group element.
	ErrInvalidPeerMessage = errors.New("pake: invalid peer message")
)

// State is one SPAKE2 instance. It has no exported fields and is not
// serializable — it is ephemeral cryptographic state whose lifetime is
// a single session (spec.md §3).
type State struct {
	role Role
	w    *ristretto255.Scalar
	idA  []byte
	idB  []byte

	x *ristretto255.Scalar  // our ephemeral secret scalar
	X *ristretto255.Element // our own public share

	started  bool
	finished bool
}

// New creates a SPAKE2 instance for the given role, password (the UTF-8
// code string), and asymmetric identity strings.
func New(role Role, password, idA, idB []byte) *State {
	return &State{
		role: role,
		w:    passwordScalar(password),
		idA:  append([]byte(nil), idA...),
		idB:  append([]byte(nil), idB...),
	}
}

// Start generates this side's ephemeral key pair and returns the wire
// message to send to the peer.
func (s *State) Start() ([]byte, error) {
	if s.started {
		return nil, ErrAlreadyStarted
	}

	seed := make([]byte, 64)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("pake: generate ephemeral scalar: %w", err)
	}
	s.x = randomScalar(seed)

	blind := s.blindingElement()
	s.X = ristretto255.NewElement().ScalarBaseMult(s.x)
	s.X.Add(s.X, ristretto255.NewElement().ScalarMult(s.w, blind))

	s.started = true
	return s.X.Encode(nil), nil
}

// Finish consumes the peer's wire message and derives the raw shared
// secret. It does not itself detect a code mismatch (spec.md §4.6): a
// mismatched code still produces a (different, useless) secret here:
// detection happens at the caller's first failed Authenticated Box
// decryption.
func (s *State) Finish(peerMessage []byte) ([SecretSize]byte, error) {
	var secret [SecretSize]byte

	if !s.started {
		return secret, ErrNotStarted
	}
	if s.finished {
		return secret, ErrAlreadyFinished
	}

	peer := ristretto255.NewElement()
	if err := peer.Decode(peerMessage); err != nil {
		return secret, fmt.Errorf("%w: %v", ErrInvalidPeerMessage, err)
	}

	peerBlind := s.peerBlindingElement()
	unblinded := ristretto255.NewElement().Subtract(peer, ristretto255.NewElement().ScalarMult(s.w, peerBlind))
	shared := ristretto255.NewElement().ScalarMult(s.x, unblinded)

	var ourShare, peerShare *ristretto255.Element
	if s.role == RoleA {
		ourShare, peerShare = s.X, peer
	} else {
		ourShare, peerShare = peer, s.X
	}

	secret = s.transcriptHash(ourShare, peerShare, shared)
	s.finished = true
	return secret, nil
}

// blindingElement returns the element this role adds to its own public
// share: M for A, N for B.
func (s *State) blindingElement() *ristretto255.Element {
	if s.role == RoleA {
		return elementM
	}
	return elementN
}

// peerBlindingElement returns the element the peer used to blind its
// share: N when we are A (peer is B), M when we are B (peer is A).
func (s *State) peerBlindingElement() *ristretto255.Element {
	if s.role == RoleA {
		return elementN
	}
	return elementM
}

// transcriptHash computes TT = H(idA || idB || X || Y || K || w), with
// every field length-prefixed to prevent ambiguity, and X/Y always in
// the fixed A-then-B order regardless of which role is computing it.
func (s *State) transcriptHash(shareA, shareB, shared *ristretto255.Element) [SecretSize]byte {
	h := sha256.New()
	writeLengthPrefixed(h, s.idA)
	writeLengthPrefixed(h, s.idB)
	writeLengthPrefixed(h, shareA.Encode(nil))
	writeLengthPrefixed(h, shareB.Encode(nil))
	writeLengthPrefixed(h, shared.Encode(nil))
	writeLengthPrefixed(h, s.w.Encode(nil))

	var out [SecretSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeLengthPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(b)))
	h.Write(length[:])
	h.Write(b)
}
