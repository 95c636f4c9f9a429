package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/postalsys/rendezcode/internal/relay"
)

func newTestPair(t *testing.T, mock *mockRelay, appIDInitiator, appIDReceiver string, initiatorPayload, receiverPayload []byte, opts ...Option) (*Initiator, *Receiver, func()) {
	t.Helper()
	srv := mock.server()

	client := relay.NewClient(srv.URL+"/", nil)
	baseOpts := []Option{WithClient(client), WithPollInterval(5 * time.Millisecond), WithTimeout(5 * time.Second)}
	allOpts := append(baseOpts, opts...)

	in := NewInitiator(appIDInitiator, initiatorPayload, srv.URL+"/", allOpts...)
	rv := NewReceiver(appIDReceiver, receiverPayload, srv.URL+"/", allOpts...)

	return in, rv, srv.Close
}

// S1 Happy path.
func TestSession_HappyPath(t *testing.T) {
	mock := newMockRelay()
	in, rv, closeFn := newTestPair(t, mock, "app", "app", []byte("hello"), []byte("world"))
	defer closeFn()

	ctx := context.Background()
	code, err := in.GetCode(ctx)
	if err != nil {
		t.Fatalf("GetCode: %v", err)
	}
	if !strings.Contains(code, "-") {
		t.Fatalf("code %q does not look like channel-id-word-word", code)
	}

	if err := rv.SetCode(code); err != nil {
		t.Fatalf("SetCode: %v", err)
	}

	type result struct {
		data []byte
		err  error
	}
	initiatorCh := make(chan result, 1)
	receiverCh := make(chan result, 1)

	go func() {
		data, err := in.GetData(ctx)
		initiatorCh <- result{data, err}
	}()
	go func() {
		data, err := rv.GetData(ctx)
		receiverCh <- result{data, err}
	}()

	initiatorResult := <-initiatorCh
	receiverResult := <-receiverCh

	if initiatorResult.err != nil {
		t.Fatalf("initiator GetData: %v", initiatorResult.err)
	}
	if receiverResult.err != nil {
		t.Fatalf("receiver GetData: %v", receiverResult.err)
	}
	if string(initiatorResult.data) != "world" {
		t.Errorf("initiator got %q, want %q", initiatorResult.data, "world")
	}
	if string(receiverResult.data) != "hello" {
		t.Errorf("receiver got %q, want %q", receiverResult.data, "hello")
	}

	if !mock.bothDeallocated(in.core.channelID) {
		t.Error("expected both sides to have deallocated")
	}
}

// S2 Wrong code.
func TestSession_WrongCode(t *testing.T) {
	mock := newMockRelay()
	in, rv, closeFn := newTestPair(t, mock, "app", "app", []byte("hello"), []byte("world"))
	defer closeFn()

	ctx := context.Background()
	code, err := in.GetCode(ctx)
	if err != nil {
		t.Fatalf("GetCode: %v", err)
	}

	channelID, _ := extractPrefix(code)
	wrongCode := channelID + "-wrong-word"
	if err := rv.SetCode(wrongCode); err != nil {
		t.Fatalf("SetCode: %v", err)
	}

	type result struct{ err error }
	initiatorCh := make(chan result, 1)
	receiverCh := make(chan result, 1)

	go func() { _, err := in.GetData(ctx); initiatorCh <- result{err} }()
	go func() { _, err := rv.GetData(ctx); receiverCh <- result{err} }()

	ir := <-initiatorCh
	rr := <-receiverCh

	if !errors.Is(ir.err, ErrBadCode) {
		t.Errorf("initiator got %v, want ErrBadCode", ir.err)
	}
	if !errors.Is(rr.err, ErrBadCode) {
		t.Errorf("receiver got %v, want ErrBadCode", rr.err)
	}
}

// S3 Mismatched appid.
func TestSession_MismatchedAppID(t *testing.T) {
	mock := newMockRelay()
	in, rv, closeFn := newTestPair(t, mock, "app1", "app2", []byte("hello"), []byte("world"))
	defer closeFn()

	ctx := context.Background()
	code, err := in.GetCode(ctx)
	if err != nil {
		t.Fatalf("GetCode: %v", err)
	}
	if err := rv.SetCode(code); err != nil {
		t.Fatalf("SetCode: %v", err)
	}

	type result struct{ err error }
	initiatorCh := make(chan result, 1)
	receiverCh := make(chan result, 1)

	go func() { _, err := in.GetData(ctx); initiatorCh <- result{err} }()
	go func() { _, err := rv.GetData(ctx); receiverCh <- result{err} }()

	ir := <-initiatorCh
	rr := <-receiverCh

	if !errors.Is(ir.err, ErrBadCode) {
		t.Errorf("initiator got %v, want ErrBadCode", ir.err)
	}
	if !errors.Is(rr.err, ErrBadCode) {
		t.Errorf("receiver got %v, want ErrBadCode", rr.err)
	}
}

// S4 Slow peer: a delayed receiver PAKE post should still let the
// initiator succeed as long as it arrives before the session timeout.
func TestSession_SlowPeerWithinTimeout(t *testing.T) {
	mock := newMockRelay()
	srv := mock.server()
	defer srv.Close()

	client := relay.NewClient(srv.URL+"/", nil)
	in := NewInitiator("app", []byte("hello"), srv.URL+"/",
		WithClient(client), WithPollInterval(5*time.Millisecond), WithTimeout(2*time.Second))
	rv := NewReceiver("app", []byte("world"), srv.URL+"/",
		WithClient(client), WithPollInterval(5*time.Millisecond), WithTimeout(2*time.Second))

	ctx := context.Background()
	code, err := in.GetCode(ctx)
	if err != nil {
		t.Fatalf("GetCode: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		rv.SetCode(code)
		rv.GetData(ctx)
	}()

	data, err := in.GetData(ctx)
	if err != nil {
		t.Fatalf("initiator GetData: %v", err)
	}
	if string(data) != "world" {
		t.Errorf("got %q, want %q", data, "world")
	}
}

// S4 continued: exceeding the deadline produces Timeout.
func TestSession_PeerNeverArrivesTimesOut(t *testing.T) {
	mock := newMockRelay()
	srv := mock.server()
	defer srv.Close()

	client := relay.NewClient(srv.URL+"/", nil)
	in := NewInitiator("app", []byte("hello"), srv.URL+"/",
		WithClient(client), WithPollInterval(5*time.Millisecond), WithTimeout(50*time.Millisecond))

	ctx := context.Background()
	if _, err := in.GetCode(ctx); err != nil {
		t.Fatalf("GetCode: %v", err)
	}

	_, err := in.GetData(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

// S5 Relay 500 on allocate.
func TestSession_RelayErrorOnAllocate(t *testing.T) {
	mock := newMockRelay()
	mock.forceStatus["allocate"] = 500
	srv := mock.server()
	defer srv.Close()

	client := relay.NewClient(srv.URL+"/", nil)
	in := NewInitiator("app", []byte("hello"), srv.URL+"/", WithClient(client))

	_, err := in.GetCode(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	var relayErr *relay.RelayError
	if !errors.As(err, &relayErr) {
		t.Fatalf("got %v, want *relay.RelayError", err)
	}
}

// S6 Malformed code.
func TestSession_MalformedCode(t *testing.T) {
	mock := newMockRelay()
	srv := mock.server()
	defer srv.Close()

	client := relay.NewClient(srv.URL+"/", nil)
	rv := NewReceiver("app", []byte("world"), srv.URL+"/", WithClient(client))

	err := rv.SetCode("seven-spatula")
	if !errors.Is(err, ErrMalformedCode) {
		t.Fatalf("got %v, want ErrMalformedCode", err)
	}
}

func extractPrefix(code string) (string, string) {
	idx := strings.Index(code, "-")
	if idx < 0 {
		return code, ""
	}
	return code[:idx], code[idx+1:]
}
