// Package discovery manages one user's candidate deck: preference state,
// exclusion sets, the daily quota, and the hand-off to the match engine on a
// like.
package discovery

import (
	"context"
	"sync"

	"github.com/oggyb/heartpost/internal/app"
	"github.com/oggyb/heartpost/internal/cache"
	"github.com/oggyb/heartpost/internal/db"
	svcErr "github.com/oggyb/heartpost/internal/errors"
	"github.com/oggyb/heartpost/internal/repository"
	"github.com/oggyb/heartpost/internal/rpc"
	"github.com/oggyb/heartpost/internal/service/match"
)

// Session is the per-user discovery selector. Exclusion sets are explicit
// instance state, persisted in redis and reconciled from the append-only
// swipe log at session start.
type Session struct {
	appCtx   *app.AppContext
	swipes   *repository.SwipeRepository
	procs    rpc.Procedures
	matchSvc *match.Service
	userID   uint64

	mu      sync.Mutex
	prefs   rpc.Preferences
	liked   map[uint64]struct{}
	skipped map[uint64]struct{}
}

// NewSession builds a selector for the given user. Call Load before first use.
func NewSession(appCtx *app.AppContext, procs rpc.Procedures, matchSvc *match.Service, userID uint64, prefs rpc.Preferences) *Session {
	return &Session{
		appCtx:   appCtx,
		swipes:   repository.NewSwipeRepository(appCtx.DB),
		procs:    procs,
		matchSvc: matchSvc,
		userID:   userID,
		prefs:    prefs,
		liked:    make(map[uint64]struct{}),
		skipped:  make(map[uint64]struct{}),
	}
}

// Load reconciles the exclusion sets: local cache ∪ remote swipe log. Either
// source alone may be stale after a reinstall or a cache flush.
func (s *Session) Load(ctx context.Context) error {
	liked := make(map[uint64]struct{})
	skipped := make(map[uint64]struct{})

	for _, set := range []struct {
		action db.SwipeAction
		dst    map[uint64]struct{}
	}{
		{db.SwipeLike, liked},
		{db.SwipePass, skipped},
	} {
		cached, err := s.appCtx.RedisCache.SeenIDs(ctx, s.userID, string(set.action))
		if err != nil {
			return svcErr.Map(err)
		}
		logged, err := s.swipes.TargetIDs(ctx, s.userID, set.action)
		if err != nil {
			return svcErr.Map(err)
		}
		for _, id := range cached {
			set.dst[id] = struct{}{}
		}
		for _, id := range logged {
			set.dst[id] = struct{}{}
		}
	}

	s.mu.Lock()
	s.liked = liked
	s.skipped = skipped
	s.mu.Unlock()
	return nil
}

// Preferences returns the current filter.
func (s *Session) Preferences() rpc.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetPreferences replaces the filter and resets both exclusion sets: a
// changed filter may re-admit previously-skipped profiles. Deliberate, not a
// bug.
func (s *Session) SetPreferences(ctx context.Context, prefs rpc.Preferences) error {
	s.mu.Lock()
	s.prefs = prefs
	s.liked = make(map[uint64]struct{})
	s.skipped = make(map[uint64]struct{})
	s.mu.Unlock()

	return svcErr.Map(s.appCtx.RedisCache.ClearSeen(ctx, s.userID))
}

// exclusions snapshots both sets into one slice for the collaborator call.
func (s *Session) exclusions() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.liked)+len(s.skipped))
	for id := range s.liked {
		out = append(out, id)
	}
	for id := range s.skipped {
		if _, dup := s.liked[id]; !dup {
			out = append(out, id)
		}
	}
	return out
}

// NextCandidate fetches the next profile to show.
//
// Behavior:
//   - (nil, nil) means the deck is empty: no more candidates, not an error.
//   - A deadline on ctx bounds the wait; expiry surfaces as ErrTransient
//     ("slow connection"), distinct from the empty deck.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	p, err := session.NextCandidate(ctx)
func (s *Session) NextCandidate(ctx context.Context) (*db.Profile, error) {
	p, err := s.procs.RandomProfile(ctx, s.userID, s.Preferences(), s.exclusions())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return p, nil
}

// RecordSwipe logs a decision, behind the daily quota.
//
// Behavior:
//   - The quota check runs first; once the counter signals exhaustion the
//     swipe is aborted with ErrRateLimited: no log entry, no match.
//   - Admitted swipes append to the log and both exclusion layers.
//   - A like hands off to the match engine, which reuses any existing
//     active-family match for the pair.
//
// Returns the match a like produced (existing or new), nil for a pass.
func (s *Session) RecordSwipe(ctx context.Context, targetID uint64, action db.SwipeAction) (*db.Match, error) {
	if !action.Valid() {
		return nil, svcErr.Validation("unknown swipe action %q", action)
	}
	if targetID == s.userID {
		return nil, svcErr.Validation("cannot swipe on yourself")
	}

	n, err := s.procs.IncrementSwipeCount(ctx, s.userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if n == cache.LimitReached {
		return nil, svcErr.RateLimited("daily swipe limit reached for user %d", s.userID)
	}

	if _, err := s.swipes.Append(ctx, s.userID, targetID, action); err != nil {
		return nil, svcErr.Map(err)
	}

	s.mu.Lock()
	if action == db.SwipeLike {
		s.liked[targetID] = struct{}{}
	} else {
		s.skipped[targetID] = struct{}{}
	}
	s.mu.Unlock()

	if err := s.appCtx.RedisCache.AddSeen(ctx, s.userID, targetID, string(action)); err != nil {
		// local set still covers this session; the log covers the next
		s.appCtx.Logger.Warn("exclusion cache write failed", "user", s.userID, "err", err)
	}

	if action != db.SwipeLike {
		return nil, nil
	}

	m, _, err := s.matchSvc.CreateFromLike(ctx, s.userID, targetID)
	if err != nil {
		return nil, err
	}
	return m, nil
}
