package relay

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is returned by LongPoll when the deadline elapses before
// any message arrives.
var ErrTimeout = errors.New("relay: poll deadline exceeded")

// ErrCancelled is returned by LongPoll when ctx is cancelled externally
// (as opposed to its deadline simply elapsing).
var ErrCancelled = errors.New("relay: poll cancelled")

// PollFunc issues one poll request and returns whatever messages are
// currently queued.
type PollFunc func(ctx context.Context) ([][]byte, error)

// LongPoll implements the rendezvous-wait pattern of spec.md §4.5: if
// initial is already non-empty it returns immediately, otherwise it
// calls poll repeatedly at a fixed interval until at least one message
// arrives or ctx's deadline elapses.
//
// interval paces calls via a rate.Limiter (one event per interval,
// burst 1) rather than a bare time.Sleep; each call to LongPoll builds
// its own limiter.
func LongPoll(ctx context.Context, initial [][]byte, interval time.Duration, poll PollFunc) ([][]byte, error) {
	if len(initial) > 0 {
		return initial, nil
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	// Drain the initial burst token so that every poll, the first one
	// included, is preceded by one interval of waiting.
	limiter.Allow()

	for {
		if err := limiter.Wait(ctx); err != nil {
			// Wait also fails, without ctx being done yet, when the next
			// tick would fall past ctx's deadline; that is a timeout too.
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ErrCancelled
			}
			return nil, ErrTimeout
		}

		messages, err := poll(ctx)
		if err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			return messages, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ErrCancelled
		default:
		}
	}
}
