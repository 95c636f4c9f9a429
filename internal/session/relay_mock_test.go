package session

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// mockRelay is a minimal in-memory stand-in for the relay HTTP service,
// exercising exactly the wire shape spec.md §4.4 describes. It exists
// only for these tests; the real relay is out of this package's scope.
type mockRelay struct {
	mu          sync.Mutex
	nextID      int64
	mailboxes   map[int64]map[string][][]byte // channelID -> side -> queued messages for that side
	deallocated map[int64]map[string]bool
	forceStatus map[string]int // endpoint suffix -> status code to force
	delays      map[string]time.Duration
}

func newMockRelay() *mockRelay {
	return &mockRelay{
		nextID:      1,
		mailboxes:   make(map[int64]map[string][][]byte),
		deallocated: make(map[int64]map[string]bool),
		forceStatus: make(map[string]int),
		delays:      make(map[string]time.Duration),
	}
}

func otherSide(side string) string {
	if side == "initiator" {
		return "receiver"
	}
	return "initiator"
}

func (m *mockRelay) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(m.handle))
}

func (m *mockRelay) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	if status, ok := m.forceStatus[path]; ok {
		w.WriteHeader(status)
		return
	}
	if d, ok := m.delays[path]; ok {
		time.Sleep(d)
	}

	if path == "allocate" {
		m.mu.Lock()
		id := m.nextID
		m.nextID++
		m.mailboxes[id] = map[string][][]byte{"initiator": nil, "receiver": nil}
		m.deallocated[id] = map[string]bool{"initiator": false, "receiver": false}
		m.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]int64{"channel-id": id})
		return
	}

	if path == "list" {
		m.mu.Lock()
		ids := make([]int64, 0, len(m.mailboxes))
		for id := range m.mailboxes {
			ids = append(ids, id)
		}
		m.mu.Unlock()
		json.NewEncoder(w).Encode(map[string][]int64{"channel-ids": ids})
		return
	}

	parts := strings.SplitN(path, "/", 3)
	if len(parts) != 3 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	channelID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	side := parts[1]
	action := parts[2]

	m.mu.Lock()
	defer m.mu.Unlock()

	switch action {
	case "pake/post", "data/post":
		var body struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		msg, _ := hex.DecodeString(body.Message)
		peer := otherSide(side)
		m.mailboxes[channelID][peer] = append(m.mailboxes[channelID][peer], msg)

		queued := m.mailboxes[channelID][side]
		m.mailboxes[channelID][side] = nil
		writeMessages(w, queued)

	case "pake/poll", "data/poll":
		queued := m.mailboxes[channelID][side]
		m.mailboxes[channelID][side] = nil
		writeMessages(w, queued)

	case "deallocate":
		if m.deallocated[channelID] == nil {
			m.deallocated[channelID] = map[string]bool{"initiator": false, "receiver": false}
		}
		m.deallocated[channelID][side] = true
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeMessages(w http.ResponseWriter, messages [][]byte) {
	hexMessages := make([]string, 0, len(messages))
	for _, m := range messages {
		hexMessages = append(hexMessages, hex.EncodeToString(m))
	}
	json.NewEncoder(w).Encode(map[string][]string{"messages": hexMessages})
}

func (m *mockRelay) bothDeallocated(channelID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deallocated[channelID]
	return ok && d["initiator"] && d["receiver"]
}
