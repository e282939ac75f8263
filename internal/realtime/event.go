// Package realtime carries change events from the shared backend to the
// client-side engines. Sources deliver per-table insert/update/delete streams;
// the bridge fans relevant ones into the unread aggregator.
package realtime

import (
	"context"
	"strconv"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Record is the loosely-typed row payload of an event. JSON numbers arrive as
// float64; the accessors below paper over that.
type Record map[string]any

// Uint64 reads a numeric field, tolerating the types JSON decoding produces.
func (r Record) Uint64(key string) uint64 {
	switch v := r[key].(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case int64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case uint64:
		return v
	case int:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case string:
		n, _ := strconv.ParseUint(v, 10, 64)
		return n
	}
	return 0
}

// String reads a string field, empty when absent or non-string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// ID returns the row's primary key.
func (r Record) ID() uint64 { return r.Uint64("id") }

// Event is one change notification: {eventType, new, old}.
type Event struct {
	Type  EventType `json:"type"`
	Table string    `json:"table"`
	New   Record    `json:"new,omitempty"`
	Old   Record    `json:"old,omitempty"`
}

// Entity returns the row the event is about: New, except for deletes.
func (e Event) Entity() Record {
	if e.Type == EventDelete {
		return e.Old
	}
	return e.New
}

// Filter is a field-equality predicate applied to the event's entity.
// Values are compared in string form.
type Filter map[string]string

// Matches reports whether every filter entry equals the record's field.
func (f Filter) Matches(r Record) bool {
	for key, want := range f {
		switch v := r[key].(type) {
		case string:
			if v != want {
				return false
			}
		case bool:
			if strconv.FormatBool(v) != want {
				return false
			}
		case float64:
			if strconv.FormatFloat(v, 'f', -1, 64) != want {
				return false
			}
		case nil:
			return false
		default:
			return false
		}
	}
	return true
}

// Subscription is one live event stream. Close releases it; the channel is
// closed afterwards.
type Subscription struct {
	ID    string
	C     <-chan Event
	close func()
}

func (s *Subscription) Close() {
	if s.close != nil {
		s.close()
	}
}

// Source hands out per-table event streams, optionally filtered by field
// equality. Implementations: RedisSource (pub/sub) and WebsocketSource
// (hosted realtime endpoint).
type Source interface {
	Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error)
}
