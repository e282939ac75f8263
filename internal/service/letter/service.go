// Package letter owns the anonymous-letter exchange and its promotion into a
// match once interest proves mutual.
package letter

import (
	"context"
	"strings"

	"github.com/oggyb/heartpost/internal/app"
	"github.com/oggyb/heartpost/internal/db"
	svcErr "github.com/oggyb/heartpost/internal/errors"
	"github.com/oggyb/heartpost/internal/notify"
	"github.com/oggyb/heartpost/internal/repository"
	"github.com/oggyb/heartpost/internal/rpc"
	"github.com/oggyb/heartpost/internal/service/match"
)

// AnonymousName labels letters whose sender must stay hidden or whose profile
// is missing.
const AnonymousName = "Anonymous"

// Service implements the letter lifecycle engine. Recipient routing is the
// backend's job (rpc.Procedures); this engine owns the decision flow and the
// idempotent promotion to a match.
type Service struct {
	appCtx   *app.AppContext
	letters  *repository.LetterRepository
	profiles *repository.ProfileRepository
	procs    rpc.Procedures
	matchSvc *match.Service
	notifier notify.Notifier
}

// NewService creates the engine on top of an already-built match engine so
// promotions share its existing-or-create logic.
func NewService(appCtx *app.AppContext, procs rpc.Procedures, matchSvc *match.Service, notifier notify.Notifier) *Service {
	return &Service{
		appCtx:   appCtx,
		letters:  repository.NewLetterRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		procs:    procs,
		matchSvc: matchSvc,
		notifier: notifier,
	}
}

// Decision is the outcome of a recipient's like: the updated letter, and the
// full match projection when the like completed a mutual pair.
type Decision struct {
	Letter  *db.Letter
	Matched bool
	Match   *match.View
}

// InboxItem is one letter plus the display name the viewer is allowed to see.
type InboxItem struct {
	Letter     db.Letter
	SenderName string
}

// Send routes a new letter to a randomly selected eligible recipient.
//
// Behavior:
//   - The recipient is chosen by the collaborator, not here.
//   - The letter lands as status=pending and the recipient is notified.
func (s *Service) Send(ctx context.Context, senderID uint64, content string) (*db.Letter, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, svcErr.Validation("letter content is empty")
	}

	recipientID, err := s.procs.RandomRecipient(ctx, senderID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	l, err := s.letters.Create(ctx, senderID, recipientID, content)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	notify.Dispatch(ctx, s.notifier, s.appCtx.Logger, notify.Notification{
		UserID: recipientID,
		Title:  "A letter arrived",
		Body:   "Someone wrote to you.",
	})
	return l, nil
}

// Like records the recipient's interest and, when the reciprocal letter is
// already liked, promotes both letters and ensures exactly one active match.
//
// Every step is idempotent and safe to retry from scratch: a replayed like is
// a no-op, an already-promoted pair falls through to the existing-match
// lookup. There is no rollback; step failures surface as "try again".
func (s *Service) Like(ctx context.Context, letterID, actorID uint64) (*Decision, error) {
	l, err := s.get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if l.RecipientID != actorID {
		return nil, svcErr.Validation("user %d is not the recipient of letter %d", actorID, letterID)
	}

	rows, err := s.letters.SetStatus(ctx, letterID, []db.LetterStatus{db.LetterPending}, db.LetterLiked)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if rows == 0 {
		// replay or race; fresh status decides what this means
		l, err = s.get(ctx, letterID)
		if err != nil {
			return nil, err
		}
		switch l.Status {
		case db.LetterLiked:
			// fall through to the reciprocal check, retry-safe
		case db.LetterMatched, db.LetterStartedChat:
			return s.decisionForMatched(ctx, l, actorID)
		default:
			return nil, svcErr.Conflict("letter %d is %s, not pending", letterID, l.Status)
		}
	}

	reciprocal, err := s.letters.FindReciprocalLiked(ctx, l.RecipientID, l.SenderID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if reciprocal == nil {
		notify.Dispatch(ctx, s.notifier, s.appCtx.Logger, notify.Notification{
			UserID: l.SenderID,
			Title:  "Your letter was liked",
			Body:   "Write back or start the chat.",
		})
		fresh, err := s.get(ctx, letterID)
		if err != nil {
			return nil, err
		}
		return &Decision{Letter: fresh}, nil
	}

	// both directions liked: flip the pair, then converge on one match
	if err := s.letters.PromotePair(ctx, l.ID, reciprocal.ID); err != nil {
		// tolerate a concurrent promotion having already flipped them
		fresh, ferr := s.get(ctx, letterID)
		if ferr != nil || fresh.Status != db.LetterMatched {
			return nil, svcErr.Map(err)
		}
	}

	fresh, err := s.get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	dec, err := s.decisionForMatched(ctx, fresh, actorID)
	if err != nil {
		return nil, err
	}

	notify.Dispatch(ctx, s.notifier, s.appCtx.Logger, notify.Notification{
		UserID: l.SenderID,
		Title:  "It's a match",
		Body:   "Your letters found each other.",
	})
	return dec, nil
}

// decisionForMatched ensures the pair's match exists and projects it for the
// actor. Reused by replays so two tabs get the same answer.
func (s *Service) decisionForMatched(ctx context.Context, l *db.Letter, actorID uint64) (*Decision, error) {
	m, err := s.matchSvc.EnsureMutual(ctx, l.SenderID, l.RecipientID)
	if err != nil {
		return nil, err
	}
	view, err := s.matchSvc.ForViewer(ctx, m, actorID)
	if err != nil {
		return nil, err
	}
	return &Decision{Letter: l, Matched: true, Match: &view}, nil
}

// Decline is terminal for the letter and has no match side effect.
func (s *Service) Decline(ctx context.Context, letterID, actorID uint64) error {
	l, err := s.get(ctx, letterID)
	if err != nil {
		return err
	}
	if l.RecipientID != actorID {
		return svcErr.Validation("user %d is not the recipient of letter %d", actorID, letterID)
	}

	rows, err := s.letters.SetStatus(ctx, letterID, []db.LetterStatus{db.LetterPending}, db.LetterDeclined)
	if err != nil {
		return svcErr.Map(err)
	}
	if rows == 0 {
		l, err = s.get(ctx, letterID)
		if err != nil {
			return err
		}
		if l.Status == db.LetterDeclined {
			return nil // already declined, idempotent
		}
		return svcErr.Conflict("letter %d is %s, not pending", letterID, l.Status)
	}
	return nil
}

// StartChat opens (or reuses) the match behind a liked or matched letter and
// advances the letter out of the active list.
//
// Reuses the same existing-or-create path as promotion, so double-invocation
// cannot create two matches.
func (s *Service) StartChat(ctx context.Context, letterID, actorID uint64) (*match.View, error) {
	l, err := s.get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if l.SenderID != actorID && l.RecipientID != actorID {
		return nil, svcErr.Validation("user %d is not part of letter %d", actorID, letterID)
	}
	if l.Status != db.LetterLiked && l.Status != db.LetterMatched {
		return nil, svcErr.Validation("letter %d is %s, chat unavailable", letterID, l.Status)
	}

	m, err := s.matchSvc.EnsureMutual(ctx, l.SenderID, l.RecipientID)
	if err != nil {
		return nil, err
	}

	// best effort; the match already exists either way
	if _, err := s.letters.SetStatus(ctx, letterID,
		[]db.LetterStatus{db.LetterLiked, db.LetterMatched}, db.LetterStartedChat); err != nil {
		s.appCtx.Logger.Warn("letter status advance failed", "letter", letterID, "err", err)
	}

	view, err := s.matchSvc.ForViewer(ctx, m, actorID)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Inbox lists letters awaiting the viewer. Sender names stay anonymous until
// the pair matched; a missing profile degrades to the placeholder.
func (s *Service) Inbox(ctx context.Context, viewerID uint64) ([]InboxItem, error) {
	letters, err := s.letters.InboxFor(ctx, viewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	items := make([]InboxItem, 0, len(letters))
	for _, l := range letters {
		item := InboxItem{Letter: l, SenderName: AnonymousName}
		if l.Matched {
			if p, err := s.profiles.Get(ctx, l.SenderID); err == nil && p.DisplayName != "" {
				item.SenderName = p.DisplayName
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Sent lists the viewer's outgoing letters.
func (s *Service) Sent(ctx context.Context, viewerID uint64) ([]db.Letter, error) {
	letters, err := s.letters.SentBy(ctx, viewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return letters, nil
}

// MarkRead stamps a letter read once; re-reads mark zero rows.
func (s *Service) MarkRead(ctx context.Context, letterID, viewerID uint64) (int64, error) {
	rows, err := s.letters.MarkRead(ctx, letterID, viewerID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	return rows, nil
}

func (s *Service) get(ctx context.Context, letterID uint64) (*db.Letter, error) {
	l, err := s.letters.Get(ctx, letterID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return l, nil
}
