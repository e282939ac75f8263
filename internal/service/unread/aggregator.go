// Package unread derives badge counts from the three live collections. The
// counters live for the process only: recomputed on load, updated
// incrementally by the realtime bridge, reset by view entry.
package unread

import (
	"context"
	"sync"

	"github.com/oggyb/heartpost/internal/app"
	"github.com/oggyb/heartpost/internal/repository"
)

// Counts is a snapshot of the aggregator. Total is always the sum of the
// three categories; it is computed at snapshot time and never stored apart.
type Counts struct {
	Matches  int `json:"matches"`
	Messages int `json:"messages"`
	Letters  int `json:"letters"`
	Total    int `json:"total"`
}

// Aggregator owns the per-user unread state. All mutations serialize on one
// mutex so a reset can never tear an in-flight increment's view of the other
// fields.
type Aggregator struct {
	appCtx *app.AppContext
	userID uint64

	mu      sync.Mutex
	matches int
	letters int
	perChat map[uint64]int // message counts keyed by match id
}

// NewAggregator creates the aggregator for one signed-in user.
func NewAggregator(appCtx *app.AppContext, userID uint64) *Aggregator {
	return &Aggregator{
		appCtx:  appCtx,
		userID:  userID,
		perChat: make(map[uint64]int),
	}
}

// Bootstrap recomputes the counters from the authoritative collections.
//
// Messages start at zero: there is no per-user read-receipt join available at
// load time, so the message badge only reflects realtime traffic observed
// during this session. Known limitation, kept deliberately.
func (a *Aggregator) Bootstrap(ctx context.Context, matches *repository.MatchRepository, letters *repository.LetterRepository) error {
	pending, err := matches.CountPendingUnviewed(ctx, a.userID)
	if err != nil {
		return err
	}
	unreadLetters, err := letters.CountUnreadFor(ctx, a.userID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.matches = int(pending)
	a.letters = int(unreadLetters)
	a.perChat = make(map[uint64]int)
	a.mu.Unlock()

	a.persist(ctx)
	return nil
}

// Counts returns a consistent snapshot; Total is derived on the spot.
func (a *Aggregator) Counts() Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.countsLocked()
}

func (a *Aggregator) countsLocked() Counts {
	messages := 0
	for _, n := range a.perChat {
		messages += n
	}
	return Counts{
		Matches:  a.matches,
		Messages: messages,
		Letters:  a.letters,
		Total:    a.matches + messages + a.letters,
	}
}

// ChatCount returns the unread count for one thread.
func (a *Aggregator) ChatCount(matchID uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.perChat[matchID]
}

// --- realtime.Sink ---

// MatchRequestReceived bumps the match badge for a new incoming request.
func (a *Aggregator) MatchRequestReceived(uint64) {
	a.mu.Lock()
	a.matches++
	a.mu.Unlock()
	a.persist(context.Background())
}

// MessageReceived bumps the per-thread message badge.
func (a *Aggregator) MessageReceived(matchID, _ uint64) {
	a.mu.Lock()
	a.perChat[matchID]++
	a.mu.Unlock()
	a.persist(context.Background())
}

// LetterReceived bumps the letter badge.
func (a *Aggregator) LetterReceived(uint64) {
	a.mu.Lock()
	a.letters++
	a.mu.Unlock()
	a.persist(context.Background())
}

// --- view-entry resets; each touches exactly one field ---

// ResetMatches zeroes the match badge when the requests view opens.
func (a *Aggregator) ResetMatches() {
	a.mu.Lock()
	a.matches = 0
	a.mu.Unlock()
	a.persist(context.Background())
}

// ResetLetters zeroes the letter badge when the letters view opens.
func (a *Aggregator) ResetLetters() {
	a.mu.Lock()
	a.letters = 0
	a.mu.Unlock()
	a.persist(context.Background())
}

// ResetChat zeroes one thread's badge when that chat opens; other threads and
// the global categories are untouched.
func (a *Aggregator) ResetChat(matchID uint64) {
	a.mu.Lock()
	delete(a.perChat, matchID)
	a.mu.Unlock()
	a.persist(context.Background())
}

// persist snapshots to redis, best effort; the DB stays the source of truth.
func (a *Aggregator) persist(ctx context.Context) {
	if a.appCtx == nil || a.appCtx.RedisCache == nil {
		return
	}
	counts := a.Counts()
	if err := a.appCtx.RedisCache.SetUnreadSnapshot(ctx, a.userID, counts); err != nil {
		a.appCtx.Logger.Debug("unread snapshot write failed", "err", err)
	}
}
