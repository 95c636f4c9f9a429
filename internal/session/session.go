// Package session implements the two rendezvous state machines —
// Initiator and Receiver — that drive the PAKE engine, the relay
// client, key derivation, and the authenticated box through a complete
// code-exchange-and-payload-transfer session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/postalsys/rendezcode/internal/box"
	"github.com/postalsys/rendezcode/internal/kdf"
	"github.com/postalsys/rendezcode/internal/logging"
	"github.com/postalsys/rendezcode/internal/metrics"
	"github.com/postalsys/rendezcode/internal/pake"
	"github.com/postalsys/rendezcode/internal/relay"
	"github.com/postalsys/rendezcode/internal/wordlist"
)

// Role tags which of the two state machines a core belongs to. Per the
// redesign note in spec.md §9, this is a single role-parameterised
// struct rather than a class hierarchy: role-dependent behavior (the
// relay side tag, the PAKE primitive, the directional key contexts) is
// resolved by a switch on this field, not by virtual dispatch.
type Role int

const (
	RoleInitiator Role = iota
	RoleReceiver
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "receiver"
}

// pakeRole returns the SPAKE2 role this protocol role plays.
func (r Role) pakeRole() pake.Role {
	if r == RoleInitiator {
		return pake.RoleA
	}
	return pake.RoleB
}

// relaySide returns the relay mailbox side this protocol role posts
// under.
func (r Role) relaySide() relay.Side {
	if r == RoleInitiator {
		return relay.SideInitiator
	}
	return relay.SideReceiver
}

// outboundContext and inboundContext resolve the directional key
// contexts. Per spec.md §4.7 these are swapped for the Receiver: its
// outbound key uses "receiver", inbound uses "sender".
func (r Role) outboundContext() string {
	if r == RoleInitiator {
		return kdf.ContextSender
	}
	return kdf.ContextReceiver
}

func (r Role) inboundContext() string {
	if r == RoleInitiator {
		return kdf.ContextReceiver
	}
	return kdf.ContextSender
}

// Option configures a session core at construction time.
type Option func(*core)

// WithClient injects a relay client, overriding the one built from the
// relay base URL. Tests use this to point at an httptest server.
func WithClient(c *relay.Client) Option {
	return func(s *core) { s.client = c }
}

// WithPollInterval overrides the default 500ms long-poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *core) { s.pollInterval = d }
}

// WithTimeout overrides the default 180s session deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *core) { s.timeout = d }
}

// WithNumWords overrides the default word count (2) used by
// Initiator's GetCode.
func WithNumWords(n int) Option {
	return func(s *core) { s.numWords = n }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *core) { s.logger = l }
}

// WithMetrics overrides the default metrics.Default() instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *core) { s.metrics = m }
}

// core holds every field either role's state machine needs. Both
// Initiator and Receiver hold a pointer to one and expose only the operations
// spec.md grants their role.
type core struct {
	role    Role
	appID   []byte
	payload []byte

	relayURL     string
	client       *relay.Client
	pollInterval time.Duration
	timeout      time.Duration
	numWords     int
	logger       *slog.Logger
	metrics      *metrics.Metrics

	channelID int64
	code      string
	pakeState *pake.State

	allocated bool // guards whether Deallocate has a channel to release
	deadline  time.Time
	started   time.Time

	peerData []byte
}

func newCore(role Role, appID string, payload []byte, relayURL string, opts ...Option) *core {
	s := &core{
		role:         role,
		appID:        []byte(appID),
		payload:      payload,
		relayURL:     relayURL,
		pollInterval: 500 * time.Millisecond,
		timeout:      180 * time.Second,
		numWords:     2,
		logger:       logging.NopLogger(),
		metrics:      metrics.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = relay.NewClient(relayURL, nil)
	}
	return s
}

// identities returns the fixed idA/idB pair from spec.md §4.6: both
// roles bind against the same two strings regardless of which side
// they play.
func (s *core) identities() (idA, idB []byte) {
	idA = append([]byte(nil), s.appID...)
	idA = append(idA, ":Initiator"...)
	idB = append([]byte(nil), s.appID...)
	idB = append(idB, ":Receiver"...)
	return idA, idB
}

// ctxWithDeadline builds the per-exchange context once started has
// been set.
func (s *core) ctxWithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, s.deadline)
}

// runPake posts this side's PAKE share, waits for the peer's, and
// derives the raw session secret.
func (s *core) runPake(ctx context.Context) ([pake.SecretSize]byte, error) {
	var secret [pake.SecretSize]byte

	idA, idB := s.identities()
	s.pakeState = pake.New(s.role.pakeRole(), []byte(s.code), idA, idB)

	outbound, err := s.pakeState.Start()
	if err != nil {
		return secret, fmt.Errorf("session: start PAKE: %w", err)
	}

	side := s.role.relaySide()
	initial, err := s.postWithMetrics(ctx, "pake/post", func() ([][]byte, error) {
		return s.client.PakePost(ctx, s.channelID, side, outbound)
	})
	if err != nil {
		return secret, err
	}

	messages, err := s.longPoll(ctx, initial, "pake/poll", func(ctx context.Context) ([][]byte, error) {
		return s.client.PakePoll(ctx, s.channelID, side)
	})
	if err != nil {
		return secret, err
	}

	peerMessage := s.firstAndWarnExtra(messages)
	secret, err = s.pakeState.Finish(peerMessage)
	if err != nil {
		return secret, fmt.Errorf("session: finish PAKE: %w", err)
	}
	return secret, nil
}

// exchangeData derives the directional keys, encrypts and posts the
// outbound payload, then waits for and decrypts the peer's.
func (s *core) exchangeData(ctx context.Context, sessionKey [pake.SecretSize]byte) ([]byte, error) {
	outKey, err := kdf.Derive(sessionKey[:], s.role.outboundContext())
	if err != nil {
		return nil, fmt.Errorf("session: derive outbound key: %w", err)
	}
	defer kdf.Zero(&outKey)

	ciphertext, err := box.Seal(&outKey, s.payload)
	if err != nil {
		return nil, fmt.Errorf("session: seal payload: %w", err)
	}

	side := s.role.relaySide()
	initial, err := s.postWithMetrics(ctx, "data/post", func() ([][]byte, error) {
		return s.client.DataPost(ctx, s.channelID, side, ciphertext)
	})
	if err != nil {
		return nil, err
	}

	messages, err := s.longPoll(ctx, initial, "data/poll", func(ctx context.Context) ([][]byte, error) {
		return s.client.DataPoll(ctx, s.channelID, side)
	})
	if err != nil {
		return nil, err
	}

	inKey, err := kdf.Derive(sessionKey[:], s.role.inboundContext())
	if err != nil {
		return nil, fmt.Errorf("session: derive inbound key: %w", err)
	}
	defer kdf.Zero(&inKey)

	peerCiphertext := s.firstAndWarnExtra(messages)
	plaintext, err := box.Open(&inKey, peerCiphertext)
	if err != nil {
		s.log().Warn("decryption failed, treating as bad code")
		return nil, ErrBadCode
	}

	return plaintext, nil
}

// firstAndWarnExtra implements the "first element, warn on the rest"
// policy of spec.md §9 for unexpected extra mailbox messages.
func (s *core) firstAndWarnExtra(messages [][]byte) []byte {
	if len(messages) > 1 {
		s.metrics.RecordProtocolWarning()
		s.log().Warn("extra messages in mailbox, ignoring all but the first", logging.KeyExtra, len(messages)-1)
	}
	return messages[0]
}

func (s *core) postWithMetrics(ctx context.Context, endpoint string, call func() ([][]byte, error)) ([][]byte, error) {
	start := time.Now()
	messages, err := call()
	s.metrics.RecordRelayRequest(endpoint, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordRelayError(endpoint)
		s.log().Error("relay request failed", logging.KeyEndpoint, endpoint, logging.KeyError, err)
		return nil, err
	}
	return messages, nil
}

func (s *core) longPoll(ctx context.Context, initial [][]byte, endpoint string, poll relay.PollFunc) ([][]byte, error) {
	pollCtx, cancel := s.ctxWithDeadline(ctx)
	defer cancel()

	messages, err := relay.LongPoll(pollCtx, initial, s.pollInterval, func(ctx context.Context) ([][]byte, error) {
		start := time.Now()
		msgs, err := poll(ctx)
		s.metrics.RecordRelayRequest(endpoint, time.Since(start).Seconds())
		if err != nil {
			s.metrics.RecordRelayError(endpoint)
		}
		return msgs, err
	})

	switch err {
	case nil:
		return messages, nil
	case relay.ErrTimeout:
		return nil, ErrTimeout
	case relay.ErrCancelled:
		return nil, ErrCancelled
	default:
		return nil, err
	}
}

// allocate requests a fresh channel-id and marks the core as owning a
// live relay resource, which deallocate() then releases.
func (s *core) allocate(ctx context.Context) error {
	channelID, err := s.postWithMetricsAllocate(ctx)
	if err != nil {
		return err
	}
	s.channelID = channelID
	s.allocated = true
	return nil
}

func (s *core) postWithMetricsAllocate(ctx context.Context) (int64, error) {
	start := time.Now()
	id, err := s.client.Allocate(ctx)
	s.metrics.RecordRelayRequest("allocate", time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordRelayError("allocate")
		return 0, err
	}
	return id, nil
}

// deallocate runs the scoped-cleanup guard of spec.md §9: best-effort,
// never overrides the primary outcome, logged on failure, and a no-op
// if allocate never succeeded.
func (s *core) deallocate() {
	if !s.allocated {
		return
	}
	s.allocated = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.client.Deallocate(ctx, s.channelID, s.role.relaySide())
	s.metrics.RecordDeallocate(err == nil)
	if err != nil {
		s.log().Warn("deallocate failed", logging.KeyError, err)
	}
}

// log returns s.logger with this session's channel-id and role bound,
// via logging.WithSession, so call sites only add event-specific
// attributes.
func (s *core) log() *slog.Logger {
	return logging.WithSession(s.logger, s.channelID, s.role.String())
}

// makeCode generates the human-readable code for the Initiator side.
func (s *core) makeCode() (string, error) {
	return wordlist.MakeCode(s.channelID, s.numWords)
}

// setCode parses a caller- or tab-completion-supplied code for the
// Receiver side.
func (s *core) setCode(code string) error {
	// Strip surrounding whitespace and fold case so the PAKE password
	// matches the Initiator's generated (lower-case) code.
	code = strings.ToLower(strings.TrimSpace(code))
	channelID, err := wordlist.ExtractChannelID(code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCode, err)
	}
	s.code = code
	s.channelID = channelID
	// The Receiver never calls allocate: the channel-id came from the
	// code, which the Initiator already allocated. We still own the
	// deallocate responsibility for our own side of the mailbox.
	s.allocated = true
	return nil
}

func (s *core) recordOutcome(outcome string) {
	s.metrics.RecordSessionEnd(s.role.String(), outcome, time.Since(s.started).Seconds())
}

// classifyOutcome maps an error (nil included) to the label used on
// the sessions_total metric.
func classifyOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBadCode):
		return "bad_code"
	case errors.Is(err, ErrMalformedCode):
		return "malformed_code"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "relay_error"
	}
}
