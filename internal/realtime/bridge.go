package realtime

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
)

// Sink receives deduplicated partner-side activity relevant to one user.
// The unread aggregator is the production implementation.
type Sink interface {
	MatchRequestReceived(matchID uint64)
	MessageReceived(matchID, messageID uint64)
	LetterReceived(letterID uint64)
}

// Bridge subscribes one user to the three relevant collections and routes
// insert events into the sink. Events are delivered asynchronously and may
// repeat; the bridge dedupes by entity id and ignores everything it doesn't
// understand, so out-of-order delivery is harmless.
type Bridge struct {
	src    Source
	sink   Sink
	userID uint64
	log    *slog.Logger

	mu   sync.Mutex
	seen map[string]map[uint64]struct{}
}

// NewBridge wires a per-session bridge for the given viewer.
func NewBridge(src Source, sink Sink, userID uint64, log *slog.Logger) *Bridge {
	return &Bridge{
		src:    src,
		sink:   sink,
		userID: userID,
		log:    log,
		seen:   make(map[string]map[uint64]struct{}),
	}
}

// markSeen reports whether the entity id was already processed for the table.
func (b *Bridge) markSeen(table string, id uint64) bool {
	if id == 0 {
		return true // unidentifiable, drop rather than double-count
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids, ok := b.seen[table]
	if !ok {
		ids = make(map[uint64]struct{})
		b.seen[table] = ids
	}
	if _, dup := ids[id]; dup {
		return true
	}
	ids[id] = struct{}{}
	return false
}

// Run blocks until ctx is cancelled, pumping events into the sink.
func (b *Bridge) Run(ctx context.Context) error {
	me := strconv.FormatUint(b.userID, 10)

	matches, err := b.src.Subscribe(ctx, "matches", Filter{"user2_id": me, "status": "pending_request"})
	if err != nil {
		return err
	}
	defer matches.Close()

	messages, err := b.src.Subscribe(ctx, "messages", Filter{"receiver_id": me})
	if err != nil {
		return err
	}
	defer messages.Close()

	letters, err := b.src.Subscribe(ctx, "letters", Filter{"recipient_id": me})
	if err != nil {
		return err
	}
	defer letters.Close()

	b.log.Info("realtime bridge running", "user", b.userID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-matches.C:
			if !ok {
				return nil
			}
			if ev.Type != EventInsert {
				continue
			}
			id := ev.Entity().ID()
			if b.markSeen("matches", id) {
				continue
			}
			b.sink.MatchRequestReceived(id)

		case ev, ok := <-messages.C:
			if !ok {
				return nil
			}
			if ev.Type != EventInsert {
				continue
			}
			rec := ev.Entity()
			id := rec.ID()
			if b.markSeen("messages", id) {
				continue
			}
			b.sink.MessageReceived(rec.Uint64("match_id"), id)

		case ev, ok := <-letters.C:
			if !ok {
				return nil
			}
			if ev.Type != EventInsert {
				continue
			}
			id := ev.Entity().ID()
			if b.markSeen("letters", id) {
				continue
			}
			b.sink.LetterReceived(id)
		}
	}
}
