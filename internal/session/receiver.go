package session

import (
	"context"
	"strings"
	"time"

	"github.com/postalsys/rendezcode/internal/logging"
	"github.com/postalsys/rendezcode/internal/wordlist"
)

// Receiver drives the side of the protocol that is handed a code.
// States, per spec.md §4.7:
//
//	Fresh -> CodeSet -> PakePosted -> KeyKnown -> DataPosted -> DataReceived -> Deallocated
type Receiver struct {
	core *core
}

// NewReceiver constructs a Receiver for the given application id,
// outbound payload, and relay base URL.
func NewReceiver(appID string, payload []byte, relayURL string, opts ...Option) *Receiver {
	return &Receiver{core: newCore(RoleReceiver, appID, payload, relayURL, opts...)}
}

// SetCode parses a code obtained out-of-band (e.g. read from a
// terminal or a QR code) and prepares the Receiver to run PAKE. It
// starts the session deadline, since from this point the Receiver is
// committed to a specific channel-id.
func (rv *Receiver) SetCode(code string) error {
	s := rv.core
	s.started = time.Now()
	s.deadline = s.started.Add(s.timeout)
	s.metrics.RecordSessionStart()

	if err := s.setCode(code); err != nil {
		s.logger.Error("set code failed", logging.KeyRole, s.role.String(), logging.KeyError, err)
		s.recordOutcome(classifyOutcome(err))
		return err
	}

	s.log().Info("code set", logging.KeyState, "code-set")
	return nil
}

// CompletionSource supplies the relay's currently active channel-ids
// for tab-completion, e.g. by calling Client.List. It is the interface
// boundary with the interactive terminal UI, which this package does
// not implement.
type CompletionSource func(ctx context.Context) ([]int64, error)

// ReadLine is supplied by the interactive front end: given completion
// candidates for the text typed so far, it returns the next line the
// user entered (or a final code once they finish). This package only
// produces candidates; reading raw keystrokes with tab-completion is
// the out-of-scope terminal UI's job.
type ReadLine func(candidates []string) (string, error)

// InputCode is the interactive counterpart to SetCode: it repeatedly
// computes completion candidates from the relay's active channel-ids
// and the prefix typed so far, invoking readLine until it returns a
// complete code, then calls SetCode with it.
func (rv *Receiver) InputCode(ctx context.Context, source CompletionSource, readLine ReadLine) (string, error) {
	knownIDs, err := source(ctx)
	if err != nil {
		return "", err
	}

	prefix := ""
	for {
		candidates := wordlist.CompletionCandidates(prefix, knownIDs)
		line, err := readLine(candidates)
		if err != nil {
			return "", err
		}
		if _, parseErr := wordlist.ExtractChannelID(line); parseErr == nil && strings.Count(line, wordlist.Separator) >= wordlist.MinWords {
			if err := rv.SetCode(line); err != nil {
				return "", err
			}
			return line, nil
		}
		prefix = line
	}
}

// GetData runs the PAKE exchange and the payload exchange, returning
// the peer's decrypted payload. It always attempts a deallocate on its
// way out, per spec.md §4.7 step 6.
func (rv *Receiver) GetData(ctx context.Context) ([]byte, error) {
	s := rv.core
	defer s.deallocate()

	sessionKey, err := s.runPake(ctx)
	if err != nil {
		s.log().Error("PAKE exchange failed", logging.KeyError, err)
		s.recordOutcome(classifyOutcome(err))
		return nil, err
	}
	s.log().Info("PAKE complete", logging.KeyState, "key-known")

	data, err := s.exchangeData(ctx, sessionKey)
	s.recordOutcome(classifyOutcome(err))
	if err != nil {
		s.log().Error("data exchange failed", logging.KeyError, err)
		return nil, err
	}

	s.log().Info("data exchange complete", logging.KeyState, "data-received")
	return data, nil
}
