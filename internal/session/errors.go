package session

import "errors"

// Error kinds per spec.md §7. Each is terminal for the session except
// ProtocolWarning, which is reported via logging/metrics and does not
// abort the exchange.
var (
	// ErrTimeout is returned when the session deadline elapses while
	// polling for the peer.
	ErrTimeout = errors.New("session: timed out waiting for peer")

	// ErrMalformedCode is returned by SetCode when the code does not
	// match the "<channel-id>-<word>..." grammar. No deallocate is
	// needed: no channel was ever allocated for a code that failed to
	// parse.
	ErrMalformedCode = errors.New("session: malformed code")

	// ErrBadCode is returned when the inbound ciphertext fails its MAC
	// check, which almost always means the two sides used different
	// codes (or different app IDs).
	ErrBadCode = errors.New("session: bad code (decryption failed)")

	// ErrCancelled is returned when the caller's context is cancelled
	// before the session reaches a terminal state.
	ErrCancelled = errors.New("session: cancelled")
)
