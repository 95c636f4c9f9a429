// Package relay implements the HTTP client for the untrusted rendezvous
// relay: allocate, pake/post, pake/poll, data/post, data/poll,
// deallocate, and list. The relay itself is out of scope; this package
// only speaks its wire protocol.
package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Side partitions a channel's mailbox so a side never receives its own
// posted messages.
type Side string

const (
	SideInitiator Side = "initiator"
	SideReceiver  Side = "receiver"
)

// RelayError is returned for any non-2xx HTTP response from the relay.
type RelayError struct {
	StatusCode int
	Endpoint   string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay: %s returned status %d", e.Endpoint, e.StatusCode)
}

// RelayMalformed is returned when a relay response does not match the
// expected JSON shape.
type RelayMalformed struct {
	Endpoint string
	Err      error
}

func (e *RelayMalformed) Error() string {
	return fmt.Sprintf("relay: %s returned malformed response: %v", e.Endpoint, e.Err)
}

func (e *RelayMalformed) Unwrap() error { return e.Err }

// Client is an HTTP client bound to one relay base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the given relay base URL, which MUST
// end with "/". httpClient may be nil, in which case http.DefaultClient
// is used; callers needing custom TLS or timeouts configure it there,
// since TLS termination is this package's caller's concern, not ours.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Allocate requests a fresh channel-id from the relay.
func (c *Client) Allocate(ctx context.Context) (int64, error) {
	var resp struct {
		ChannelID int64 `json:"channel-id"`
	}
	if err := c.do(ctx, "allocate", c.baseURL+"allocate", nil, &resp); err != nil {
		return 0, err
	}
	return resp.ChannelID, nil
}

// PakePost posts this side's PAKE wire message and returns any peer
// messages already queued.
func (c *Client) PakePost(ctx context.Context, channelID int64, side Side, message []byte) ([][]byte, error) {
	return c.postMessages(ctx, channelID, side, "pake/post", message)
}

// PakePoll returns currently queued peer PAKE messages.
func (c *Client) PakePoll(ctx context.Context, channelID int64, side Side) ([][]byte, error) {
	return c.pollMessages(ctx, channelID, side, "pake/poll")
}

// DataPost posts this side's ciphertext and returns any peer messages
// already queued.
func (c *Client) DataPost(ctx context.Context, channelID int64, side Side, message []byte) ([][]byte, error) {
	return c.postMessages(ctx, channelID, side, "data/post", message)
}

// DataPoll returns currently queued peer ciphertext messages.
func (c *Client) DataPoll(ctx context.Context, channelID int64, side Side) ([][]byte, error) {
	return c.pollMessages(ctx, channelID, side, "data/poll")
}

// Deallocate releases the channel-id. It is always best-effort: callers
// log a failure here but must not let it override a primary outcome.
func (c *Client) Deallocate(ctx context.Context, channelID int64, side Side) error {
	endpoint := fmt.Sprintf("%d/%s/deallocate", channelID, side)
	url := c.baseURL + endpoint
	return c.do(ctx, endpoint, url, nil, nil)
}

// List returns the channel-ids the relay currently considers active,
// used to build tab-completion candidates.
func (c *Client) List(ctx context.Context) ([]int64, error) {
	var resp struct {
		ChannelIDs []int64 `json:"channel-ids"`
	}
	if err := c.doMethod(ctx, http.MethodGet, "list", c.baseURL+"list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ChannelIDs, nil
}

func (c *Client) postMessages(ctx context.Context, channelID int64, side Side, action string, message []byte) ([][]byte, error) {
	endpoint := fmt.Sprintf("%d/%s/%s", channelID, side, action)
	reqBody := struct {
		Message string `json:"message"`
	}{Message: hex.EncodeToString(message)}

	var resp struct {
		Messages []string `json:"messages"`
	}
	if err := c.do(ctx, endpoint, c.baseURL+endpoint, reqBody, &resp); err != nil {
		return nil, err
	}
	return decodeHexMessages(endpoint, resp.Messages)
}

func (c *Client) pollMessages(ctx context.Context, channelID int64, side Side, action string) ([][]byte, error) {
	endpoint := fmt.Sprintf("%d/%s/%s", channelID, side, action)
	var resp struct {
		Messages []string `json:"messages"`
	}
	if err := c.do(ctx, endpoint, c.baseURL+endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return decodeHexMessages(endpoint, resp.Messages)
}

func decodeHexMessages(endpoint string, hexMessages []string) ([][]byte, error) {
	out := make([][]byte, 0, len(hexMessages))
	for _, h := range hexMessages {
		b, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil {
			return nil, &RelayMalformed{Endpoint: endpoint, Err: err}
		}
		out = append(out, b)
	}
	return out, nil
}

// do issues a POST with an optional JSON body and decodes an optional
// JSON response.
func (c *Client) do(ctx context.Context, endpoint, url string, body, out interface{}) error {
	return c.doMethod(ctx, http.MethodPost, endpoint, url, body, out)
}

func (c *Client) doMethod(ctx context.Context, method, endpoint, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("relay: encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("relay: build %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RelayError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RelayMalformed{Endpoint: endpoint, Err: err}
	}
	return nil
}
