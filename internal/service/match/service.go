// Package match owns the pairing state machine: request, mutual acceptance,
// active chat window, expiry, bilateral reveal.
package match

import (
	"context"
	"strings"
	"time"

	"github.com/oggyb/heartpost/internal/app"
	"github.com/oggyb/heartpost/internal/db"
	svcErr "github.com/oggyb/heartpost/internal/errors"
	"github.com/oggyb/heartpost/internal/notify"
	"github.com/oggyb/heartpost/internal/repository"
)

// AnonymousName is shown when a partner profile can't be loaded; a missing
// related record degrades the view, never the operation.
const AnonymousName = "Someone"

// Service implements the match lifecycle engine on top of the repositories.
// All read-check-write sequences tolerate a concurrent client running the
// same sequence: writes are conditional and state is re-derived from fresh
// reads, never from cached flags.
type Service struct {
	appCtx   *app.AppContext
	matches  *repository.MatchRepository
	messages *repository.MessageRepository
	profiles *repository.ProfileRepository
	notifier notify.Notifier
	ttl      time.Duration
}

// NewService creates the engine. ttl is the chat window length (7 days in
// production); notifier may be nil to mute pushes.
func NewService(appCtx *app.AppContext, notifier notify.Notifier, ttl time.Duration) *Service {
	return &Service{
		appCtx:   appCtx,
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		notifier: notifier,
		ttl:      ttl,
	}
}

// View is the per-viewer projection of a match. The boolean combinators are
// computed here from the stored flag pairs and are never persisted.
type View struct {
	Match       db.Match
	PartnerID   uint64
	Partner     *db.Profile
	PartnerName string
	BothLiked   bool
	BothReveal  bool
	Expired     bool
	Remaining   time.Duration
	LastMessage *db.Message
}

// ForViewer projects a match for one participant, joining the partner profile
// and falling back to a placeholder when it is missing.
func (s *Service) ForViewer(ctx context.Context, m *db.Match, viewerID uint64) (View, error) {
	partnerID, ok := m.OtherUser(viewerID)
	if !ok {
		return View{}, svcErr.Validation("user %d is not part of match %d", viewerID, m.ID)
	}

	now := time.Now().UTC()
	v := View{
		Match:       *m,
		PartnerID:   partnerID,
		PartnerName: AnonymousName,
		BothLiked:   m.BothLiked(),
		BothReveal:  m.BothReveal(),
		Expired:     m.Expired(now),
		Remaining:   m.Remaining(now),
	}

	partner, err := s.profiles.Get(ctx, partnerID)
	if err != nil {
		// degrade to the placeholder, matches stay usable without the profile
		s.appCtx.Logger.Warn("partner profile missing", "match", m.ID, "partner", partnerID, "err", err)
		return v, nil
	}
	v.Partner = partner
	if partner.DisplayName != "" {
		v.PartnerName = partner.DisplayName
	}
	return v, nil
}

// CreateFromLike turns a swipe-like into a pending request.
//
// Behavior:
//   - If an active-family match already exists for the unordered pair, it is
//     returned and created=false; duplicates are never inserted.
//   - Otherwise a pending_request row is created with the actor on side 1,
//     expiring ttl from now, and the target is notified.
func (s *Service) CreateFromLike(ctx context.Context, actorID, targetID uint64) (*db.Match, bool, error) {
	if actorID == targetID {
		return nil, false, svcErr.Validation("cannot match with yourself")
	}

	existing, err := s.matches.FindActiveFamily(ctx, actorID, targetID)
	if err != nil {
		return nil, false, svcErr.Map(err)
	}
	if existing != nil {
		s.appCtx.Logger.Debug("like on existing match is a no-op", "match", existing.ID)
		return existing, false, nil
	}

	m, err := s.matches.CreateFromSwipe(ctx, actorID, targetID, s.ttl)
	if err != nil {
		return nil, false, svcErr.Map(err)
	}

	notify.Dispatch(ctx, s.notifier, s.appCtx.Logger, notify.Notification{
		UserID: targetID,
		Title:  "Someone liked you",
		Body:   "Open your requests to see who.",
	})
	return m, true, nil
}

// EnsureMutual finds or creates the active match for a mutually-interested
// pair. Idempotent: double invocation (two tabs, both letter directions)
// converges on one row.
//
// Behavior:
//   - An existing active-family match is reused; a pending request between
//     the two is upgraded to active since interest is now proven mutual.
//   - Otherwise a new active match is created in canonical user order; if the
//     insert loses a race, the winner's row is fetched and returned.
func (s *Service) EnsureMutual(ctx context.Context, a, b uint64) (*db.Match, error) {
	if a == b {
		return nil, svcErr.Validation("cannot match with yourself")
	}

	existing, err := s.matches.FindActiveFamily(ctx, a, b)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if existing != nil {
		if existing.Status == db.MatchPendingRequest {
			if _, err := s.matches.Activate(ctx, existing.ID, s.ttl); err != nil {
				return nil, svcErr.Map(err)
			}
			return s.get(ctx, existing.ID)
		}
		return existing, nil
	}

	m, err := s.matches.CreateMutual(ctx, a, b, s.ttl)
	if err != nil {
		// lost a creation race; the authoritative row wins
		if again, qerr := s.matches.FindActiveFamily(ctx, a, b); qerr == nil && again != nil {
			return again, nil
		}
		return nil, svcErr.Map(err)
	}
	return m, nil
}

// Accept activates a pending request. The expiry window restarts at
// acceptance. A second concurrent accept degrades to a harmless no-op.
func (s *Service) Accept(ctx context.Context, matchID, actorID uint64) (*db.Match, error) {
	rows, err := s.matches.AcceptPending(ctx, matchID, actorID, s.ttl)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	m, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if rows == 0 {
		// someone else got here first, or this caller isn't allowed
		if m.Status == db.MatchActive && m.HasUser(actorID) {
			return m, nil
		}
		if m.User2ID != actorID {
			return nil, svcErr.Validation("only the request recipient can accept match %d", matchID)
		}
		return nil, svcErr.Conflict("match %d is %s, not pending", matchID, m.Status)
	}

	notify.Dispatch(ctx, s.notifier, s.appCtx.Logger, notify.Notification{
		UserID: m.User1ID,
		Title:  "It's a match",
		Body:   "Your request was accepted. Say hi!",
	})
	return m, nil
}

// Decline terminates a pending request. The record persists as declined and
// simply drops out of the actor's lists.
func (s *Service) Decline(ctx context.Context, matchID, actorID uint64) error {
	rows, err := s.matches.DeclinePending(ctx, matchID, actorID)
	if err != nil {
		return svcErr.Map(err)
	}
	if rows > 0 {
		return nil
	}

	m, err := s.get(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Status == db.MatchDeclined {
		return nil // already declined, idempotent
	}
	if m.User2ID != actorID {
		return svcErr.Validation("only the request recipient can decline match %d", matchID)
	}
	return svcErr.Conflict("match %d is %s, not pending", matchID, m.Status)
}

// ToggleLike flips the caller's own liked flag inside a live match. Status is
// untouched; both_liked stays derived.
func (s *Service) ToggleLike(ctx context.Context, matchID, actorID uint64) (*db.Match, error) {
	m, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	side := m.Side(actorID)
	if side == 0 {
		return nil, svcErr.Validation("user %d is not part of match %d", actorID, matchID)
	}
	if !m.Status.InActiveFamily() {
		return nil, svcErr.Validation("match %d is %s", matchID, m.Status)
	}

	current := m.User1Liked
	if side == 2 {
		current = m.User2Liked
	}
	if _, err := s.matches.SetLiked(ctx, matchID, side, !current); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.get(ctx, matchID)
}

// ToggleReveal flips the caller's reveal flag, then re-derives status from a
// fresh read of both flags.
//
// This is deliberately a two-step write: if the status update loses a race,
// the next toggle re-derives from authoritative flags again, so a stale local
// both_reveal can never stick.
func (s *Service) ToggleReveal(ctx context.Context, matchID, actorID uint64) (*db.Match, error) {
	m, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	side := m.Side(actorID)
	if side == 0 {
		return nil, svcErr.Validation("user %d is not part of match %d", actorID, matchID)
	}
	if !m.Status.InActiveFamily() || m.Status == db.MatchPendingRequest {
		return nil, svcErr.Validation("match %d is %s, reveal unavailable", matchID, m.Status)
	}

	if _, err := s.matches.SetReveal(ctx, matchID, side, !m.RevealOf(side)); err != nil {
		return nil, svcErr.Map(err)
	}

	// fresh flags decide the status, never the pre-write snapshot
	fresh, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	switch {
	case fresh.BothReveal() && fresh.Status != db.MatchRevealed:
		_, err = s.matches.UpdateStatus(ctx, matchID,
			[]db.MatchStatus{db.MatchActive, db.MatchPendingReveal}, db.MatchRevealed)
	case !fresh.BothReveal() && fresh.Status == db.MatchRevealed:
		_, err = s.matches.UpdateStatus(ctx, matchID,
			[]db.MatchStatus{db.MatchRevealed}, db.MatchPendingReveal)
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}

	final, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if final.BothReveal() {
		partner, _ := final.OtherUser(actorID)
		notify.Dispatch(ctx, s.notifier, s.appCtx.Logger, notify.Notification{
			UserID: partner,
			Title:  "Handles revealed",
			Body:   "You both agreed to share socials.",
		})
	}
	return final, nil
}

// SendMessage creates a message after checking eligibility here, not
// trusting the backend to enforce it.
//
// Rejected before any write when the match is pending, declined or lapsed.
func (s *Service) SendMessage(ctx context.Context, matchID, senderID uint64, content string) (*db.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, svcErr.Validation("message content is empty")
	}

	m, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	receiverID, ok := m.OtherUser(senderID)
	if !ok {
		return nil, svcErr.Validation("user %d is not part of match %d", senderID, matchID)
	}
	if !m.CanMessage(time.Now().UTC()) {
		return nil, svcErr.Validation("match %d is not open for messaging", matchID)
	}

	msg, err := s.messages.Create(ctx, matchID, senderID, receiverID, content)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	notify.Dispatch(ctx, s.notifier, s.appCtx.Logger, notify.Notification{
		UserID: receiverID,
		Title:  "New message",
		Body:   "You have a new message waiting.",
	})
	return msg, nil
}

// Thread returns the conversation for a participant, oldest first.
func (s *Service) Thread(ctx context.Context, matchID, viewerID uint64, limit int) ([]db.Message, error) {
	m, err := s.get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasUser(viewerID) {
		return nil, svcErr.Validation("user %d is not part of match %d", viewerID, matchID)
	}
	msgs, err := s.messages.ListForMatch(ctx, matchID, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return msgs, nil
}

// MarkThreadRead stamps every unread incoming message in one batched write
// and returns how many were marked; reopening a read thread marks zero.
func (s *Service) MarkThreadRead(ctx context.Context, matchID, viewerID uint64) (int64, error) {
	m, err := s.get(ctx, matchID)
	if err != nil {
		return 0, err
	}
	if !m.HasUser(viewerID) {
		return 0, svcErr.Validation("user %d is not part of match %d", viewerID, matchID)
	}
	rows, err := s.messages.MarkThreadRead(ctx, matchID, viewerID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	return rows, nil
}

// ListForViewer returns the viewer's live matches as projections with partner
// profile and last-message preview.
func (s *Service) ListForViewer(ctx context.Context, viewerID uint64) ([]View, error) {
	matches, err := s.matches.ListActiveFor(ctx, viewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	views := make([]View, 0, len(matches))
	for i := range matches {
		v, err := s.ForViewer(ctx, &matches[i], viewerID)
		if err != nil {
			return nil, err
		}
		if last, err := s.messages.LastForMatch(ctx, matches[i].ID); err == nil {
			v.LastMessage = last
		}
		views = append(views, v)
	}
	return views, nil
}

// PendingRequests pages through incoming requests for the recipient.
func (s *Service) PendingRequests(ctx context.Context, viewerID uint64, token *string, limit int) ([]View, *string, error) {
	matches, next, err := s.matches.PendingRequestsFor(ctx, viewerID, token, limit)
	if err != nil {
		return nil, nil, svcErr.Map(err)
	}
	views := make([]View, 0, len(matches))
	for i := range matches {
		v, err := s.ForViewer(ctx, &matches[i], viewerID)
		if err != nil {
			return nil, nil, err
		}
		views = append(views, v)
	}
	return views, next, nil
}

// MarkRequestViewed flags an incoming request as seen by the recipient.
func (s *Service) MarkRequestViewed(ctx context.Context, matchID, viewerID uint64) error {
	m, err := s.get(ctx, matchID)
	if err != nil {
		return err
	}
	if m.User2ID != viewerID {
		return svcErr.Validation("user %d is not the recipient of match %d", viewerID, matchID)
	}
	return svcErr.Map(s.matches.SetViewed(ctx, matchID))
}

func (s *Service) get(ctx context.Context, matchID uint64) (*db.Match, error) {
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return m, nil
}
