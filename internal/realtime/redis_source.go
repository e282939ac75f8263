package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces the per-table pub/sub channels.
const channelPrefix = "realtime:"

// ChannelFor returns the pub/sub channel carrying one table's events.
func ChannelFor(table string) string { return channelPrefix + table }

// PublishEvent serializes and publishes an event on its table channel.
// Producers (and tests) use this to feed RedisSource subscribers.
func PublishEvent(ctx context.Context, client *redis.Client, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return client.Publish(ctx, ChannelFor(ev.Table), b).Err()
}

// RedisSource implements Source over redis pub/sub. Filters are applied
// client-side since redis channels only shard by table.
type RedisSource struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisSource wraps an existing client.
func NewRedisSource(client *redis.Client, log *slog.Logger) *RedisSource {
	return &RedisSource{client: client, log: log}
}

// Subscribe opens a filtered stream of one table's events. The returned
// subscription must be closed to release the underlying pub/sub connection.
func (s *RedisSource) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	ps := s.client.Subscribe(ctx, ChannelFor(table))
	// force the SUBSCRIBE round trip so errors surface here, not in the loop
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Event, 16)
	sub := &Subscription{
		ID: uuid.NewString(),
		C:  out,
		close: func() {
			_ = ps.Close()
		},
	}

	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warn("dropping malformed realtime payload", "table", table, "err", err)
				continue
			}
			if !filter.Matches(ev.Entity()) {
				continue
			}
			select {
			case out <- ev:
			default:
				// slow consumer; the engines re-derive from the DB anyway
				s.log.Warn("dropping realtime event, subscriber backlog full",
					"table", table, "sub", sub.ID)
			}
		}
	}()

	return sub, nil
}
