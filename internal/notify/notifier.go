// Package notify is the outbound push collaborator. Sends are fire-and-forget:
// failures are logged and never block or reverse the state change that
// triggered them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notification is one push intent emitted after a successful transition.
type Notification struct {
	UserID uint64 `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Notifier delivers a notification somewhere. Implementations must be safe
// to call after the triggering write committed; errors are advisory.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatch fans intents out to the notifier, logging failures and moving on.
func Dispatch(ctx context.Context, notifier Notifier, log *slog.Logger, intents ...Notification) {
	if notifier == nil {
		return
	}
	for _, n := range intents {
		if err := notifier.Send(ctx, n); err != nil {
			log.Warn("notification send failed", "user", n.UserID, "title", n.Title, "err", err)
		}
	}
}

// LogNotifier just logs; the development default.
type LogNotifier struct {
	Log *slog.Logger
}

func (l *LogNotifier) Send(_ context.Context, n Notification) error {
	l.Log.Info("notify", "user", n.UserID, "title", n.Title, "body", n.Body)
	return nil
}

// RedisNotifier publishes intents to a per-user channel the push worker
// listens on.
type RedisNotifier struct {
	Client *redis.Client
}

// ChannelFor returns the per-user notification channel.
func (r *RedisNotifier) ChannelFor(userID uint64) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

func (r *RedisNotifier) Send(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, r.ChannelFor(n.UserID), b).Err()
}

// Recorder captures sends for tests asserting "transition X enqueues
// notification Y" without a real backend.
type Recorder struct {
	mu   sync.Mutex
	Sent []Notification
}

func (r *Recorder) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, n)
	return nil
}

// ForUser returns recorded intents addressed to one user.
func (r *Recorder) ForUser(userID uint64) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.Sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
