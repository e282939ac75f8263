package realtime_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/heartpost/internal/realtime"
)

// fakeEndpoint speaks the realtime frame protocol: it remembers subscribe
// frames and can push events back tagged with a subscription id.
type fakeEndpoint struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]struct {
		Table  string
		Filter map[string]string
	}
	unsubscribed []string
}

type serverFrame struct {
	Action string            `json:"action,omitempty"`
	ID     string            `json:"id"`
	Table  string            `json:"table,omitempty"`
	Filter map[string]string `json:"filter,omitempty"`
	Event  *realtime.Event   `json:"event,omitempty"`
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		subs: make(map[string]struct {
			Table  string
			Filter map[string]string
		}),
	}
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	for {
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		f.mu.Lock()
		switch frame.Action {
		case "subscribe":
			f.subs[frame.ID] = struct {
				Table  string
				Filter map[string]string
			}{frame.Table, frame.Filter}
		case "unsubscribe":
			delete(f.subs, frame.ID)
			f.unsubscribed = append(f.unsubscribed, frame.ID)
		}
		f.mu.Unlock()
	}
}

// subFor returns the id of the single subscription on a table.
func (f *fakeEndpoint) subFor(t *testing.T, table string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for id, s := range f.subs {
			if s.Table == table {
				f.mu.Unlock()
				return id
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no subscription for table %s arrived", table)
	return ""
}

// push sends an event down to the client for the given subscription.
func (f *fakeEndpoint) push(t *testing.T, subID string, ev realtime.Event) {
	t.Helper()
	b, err := json.Marshal(serverFrame{ID: subID, Event: &ev})
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NoError(t, f.conn.WriteMessage(websocket.TextMessage, b))
}

func setupWebsocket(t *testing.T) (*realtime.WebsocketSource, *fakeEndpoint) {
	t.Helper()
	endpoint := newFakeEndpoint()
	server := httptest.NewServer(endpoint)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := realtime.NewWebsocketSource(url, log)
	require.NoError(t, src.Connect(context.Background()))
	t.Cleanup(func() { _ = src.Close() })
	return src, endpoint
}

func TestWebsocketSubscribeRegistersFilter(t *testing.T) {
	src, endpoint := setupWebsocket(t)

	sub, err := src.Subscribe(context.Background(), "messages", realtime.Filter{"receiver_id": "17"})
	require.NoError(t, err)
	defer sub.Close()

	id := endpoint.subFor(t, "messages")
	assert.Equal(t, sub.ID, id)

	endpoint.mu.Lock()
	registered := endpoint.subs[id]
	endpoint.mu.Unlock()
	assert.Equal(t, map[string]string{"receiver_id": "17"}, registered.Filter)
}

func TestWebsocketDeliversToOwningSubscription(t *testing.T) {
	src, endpoint := setupWebsocket(t)
	ctx := context.Background()

	messages, err := src.Subscribe(ctx, "messages", realtime.Filter{"receiver_id": "17"})
	require.NoError(t, err)
	defer messages.Close()

	letters, err := src.Subscribe(ctx, "letters", realtime.Filter{"recipient_id": "17"})
	require.NoError(t, err)
	defer letters.Close()

	msgID := endpoint.subFor(t, "messages")
	endpoint.push(t, msgID, realtime.Event{
		Type:  realtime.EventInsert,
		Table: "messages",
		New:   realtime.Record{"id": float64(501), "match_id": float64(9)},
	})

	ev := waitEvent(t, messages.C)
	assert.Equal(t, uint64(501), ev.Entity().ID())
	assert.Equal(t, uint64(9), ev.Entity().Uint64("match_id"))

	// the letters stream saw nothing
	select {
	case ev := <-letters.C:
		t.Fatalf("unexpected event on letters stream: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	// frames for unknown subscriptions are dropped silently
	endpoint.push(t, "not-a-subscription", realtime.Event{
		Type:  realtime.EventInsert,
		Table: "messages",
		New:   realtime.Record{"id": float64(502)},
	})
	select {
	case ev := <-messages.C:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebsocketCloseSendsUnsubscribe(t *testing.T) {
	src, endpoint := setupWebsocket(t)

	sub, err := src.Subscribe(context.Background(), "letters", realtime.Filter{})
	require.NoError(t, err)
	id := endpoint.subFor(t, "letters")

	sub.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		endpoint.mu.Lock()
		gone := len(endpoint.unsubscribed) > 0 && endpoint.unsubscribed[0] == id
		endpoint.mu.Unlock()
		if gone {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	endpoint.mu.Lock()
	assert.Contains(t, endpoint.unsubscribed, id)
	endpoint.mu.Unlock()

	// the stream channel is closed
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Close")
	}
}

func TestWebsocketConnectionLossClosesStreams(t *testing.T) {
	src, endpoint := setupWebsocket(t)

	sub, err := src.Subscribe(context.Background(), "matches", realtime.Filter{})
	require.NoError(t, err)
	endpoint.subFor(t, "matches")

	// the endpoint drops the connection out from under us
	endpoint.mu.Lock()
	require.NoError(t, endpoint.conn.Close())
	endpoint.mu.Unlock()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not torn down after connection loss")
	}
}
