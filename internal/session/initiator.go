package session

import (
	"context"
	"time"

	"github.com/postalsys/rendezcode/internal/logging"
)

// Initiator drives the side of the protocol that allocates the
// channel and publishes the code. States, per spec.md §4.7:
//
//	Fresh -> Allocated -> PakePosted -> KeyKnown -> DataPosted -> DataReceived -> Deallocated
type Initiator struct {
	core *core
}

// NewInitiator constructs an Initiator for the given application id,
// outbound payload, and relay base URL.
func NewInitiator(appID string, payload []byte, relayURL string, opts ...Option) *Initiator {
	return &Initiator{core: newCore(RoleInitiator, appID, payload, relayURL, opts...)}
}

// GetCode allocates a channel-id from the relay, synthesizes the
// human-readable code, and returns it. The caller is expected to
// publish this code to the peer out-of-band; from this point on the
// code is considered public. GetCode may only be called once.
func (in *Initiator) GetCode(ctx context.Context) (string, error) {
	s := in.core
	s.started = time.Now()
	s.deadline = s.started.Add(s.timeout)
	s.metrics.RecordSessionStart()

	if err := s.allocate(ctx); err != nil {
		s.logger.Error("allocate failed", logging.KeyRole, s.role.String(), logging.KeyError, err)
		s.recordOutcome(classifyOutcome(err))
		return "", err
	}

	code, err := s.makeCode()
	if err != nil {
		s.deallocate()
		s.recordOutcome(classifyOutcome(err))
		return "", err
	}
	s.code = code

	s.log().Info("channel allocated", logging.KeyState, "allocated")

	return code, nil
}

// GetData runs the PAKE exchange and the payload exchange, returning
// the peer's decrypted payload. It always attempts a deallocate on its
// way out, success or failure, per spec.md §4.7 step 6.
func (in *Initiator) GetData(ctx context.Context) ([]byte, error) {
	s := in.core
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
