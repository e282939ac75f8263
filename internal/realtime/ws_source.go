package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsFrame is what the hosted realtime endpoint speaks in both directions.
// Outbound: {"action":"subscribe"|"unsubscribe","id":...,"table":...,"filter":...}
// Inbound:  {"id":<subscription id>,"event":{...}}
type wsFrame struct {
	Action string            `json:"action,omitempty"`
	ID     string            `json:"id"`
	Table  string            `json:"table,omitempty"`
	Filter map[string]string `json:"filter,omitempty"`
	Event  *Event            `json:"event,omitempty"`
}

// WebsocketSource implements Source against the hosted backend's realtime
// websocket. Filters are registered server-side; one connection multiplexes
// all subscriptions.
type WebsocketSource struct {
	url  string
	log  *slog.Logger
	conn *websocket.Conn

	writeMu sync.Mutex // gorilla allows one concurrent writer
	mu      sync.Mutex
	subs    map[string]chan Event
	closed  bool
}

// NewWebsocketSource prepares a source for the given endpoint URL. Connect
// must be called before Subscribe.
func NewWebsocketSource(url string, log *slog.Logger) *WebsocketSource {
	return &WebsocketSource{
		url:  url,
		log:  log,
		subs: make(map[string]chan Event),
	}
}

// Connect dials the endpoint and starts the read loop.
func (s *WebsocketSource) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}
	s.conn = conn
	go s.readLoop()
	return nil
}

func (s *WebsocketSource) readLoop() {
	for {
		var frame wsFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			s.teardown(err)
			return
		}
		if frame.Event == nil {
			continue
		}

		s.mu.Lock()
		ch, ok := s.subs[frame.ID]
		s.mu.Unlock()
		if !ok {
			continue
		}

		select {
		case ch <- *frame.Event:
		default:
			s.log.Warn("dropping realtime event, subscriber backlog full",
				"table", frame.Event.Table, "sub", frame.ID)
		}
	}
}

// teardown closes every subscription channel after the connection dies.
func (s *WebsocketSource) teardown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err != nil {
		s.log.Warn("realtime connection closed", "err", err)
	}
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *WebsocketSource) write(frame wsFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(frame)
}

// Subscribe registers a server-side filtered stream for one table.
func (s *WebsocketSource) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("realtime source not connected")
	}

	id := uuid.NewString()
	if err := s.write(wsFrame{Action: "subscribe", ID: id, Table: table, Filter: filter}); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", table, err)
	}

	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()

	return &Subscription{
		ID: id,
		C:  ch,
		close: func() {
			_ = s.write(wsFrame{Action: "unsubscribe", ID: id})
			s.mu.Lock()
			if existing, ok := s.subs[id]; ok {
				close(existing)
				delete(s.subs, id)
			}
			s.mu.Unlock()
		},
	}, nil
}

// Close shuts the connection and every open subscription.
func (s *WebsocketSource) Close() error {
	s.teardown(nil)
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
