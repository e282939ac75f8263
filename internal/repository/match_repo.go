package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/db"
	"github.com/oggyb/heartpost/internal/utils/pagination"
)

// MatchRepository provides data access for the Match model. Every mutation is
// a single conditional UPDATE so that concurrent clients (two participants, or
// one user in two tabs) can only race into harmless no-ops.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// Get loads one match by id.
func (r *MatchRepository) Get(ctx context.Context, id uint64) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveFamily returns the live match for an unordered pair, or nil when
// none exists.
//
// Behavior:
//   - Matches either column order (swipe-created rows store initiator first,
//     letter-promoted rows store canonical order).
//   - Only active-family statuses count; declined rows are invisible here.
//
// Example:
//
//	repo.FindActiveFamily(ctx, 7, 17) // same result as (17, 7)
func (r *MatchRepository) FindActiveFamily(ctx context.Context, a, b uint64) (*db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("((user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?))", a, b, b, a).
		Where("status IN ?", db.ActiveFamily()).
		Order("id ASC").
		Limit(1).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// CreateFromSwipe inserts a fresh pending request: actor liked target via the
// discovery deck. Callers must run FindActiveFamily first.
func (r *MatchRepository) CreateFromSwipe(ctx context.Context, actorID, targetID uint64, ttl time.Duration) (*db.Match, error) {
	m := db.Match{
		User1ID:    actorID,
		User2ID:    targetID,
		Status:     db.MatchPendingRequest,
		User1Liked: true,
		ExpiresAt:  time.Now().UTC().Add(ttl),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMutual inserts an already-active match for a mutual-letter pair.
// User ids are stored in canonical sorted order so concurrent promotions of
// the same pair collide on the same logical row.
func (r *MatchRepository) CreateMutual(ctx context.Context, a, b uint64, ttl time.Duration) (*db.Match, error) {
	u1, u2 := db.CanonicalPair(a, b)
	m := db.Match{
		User1ID:    u1,
		User2ID:    u2,
		Status:     db.MatchActive,
		User1Liked: true,
		User2Liked: true,
		Viewed:     true,
		ExpiresAt:  time.Now().UTC().Add(ttl),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// AcceptPending flips a pending request to active in one atomic write.
//
// Behavior:
//   - Guarded on id, recipient and current status, so a double-click or a
//     second tab affects zero rows instead of re-activating.
//   - Restarts the expiry window: the 7 days run from acceptance, not from
//     request creation.
//
// Returns the number of rows affected (0 or 1).
func (r *MatchRepository) AcceptPending(ctx context.Context, matchID, recipientID uint64, ttl time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND user2_id = ? AND status = ?", matchID, recipientID, db.MatchPendingRequest).
		Updates(map[string]interface{}{
			"status":      db.MatchActive,
			"user2_liked": true,
			"viewed":      true,
			"expires_at":  time.Now().UTC().Add(ttl),
		})
	return res.RowsAffected, res.Error
}

// Activate upgrades a pending request into a full mutual match without going
// through the accept flow; used when a letter pair proves mutual interest.
// Guarded on the current status so it races into a no-op.
func (r *MatchRepository) Activate(ctx context.Context, matchID uint64, ttl time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND status = ?", matchID, db.MatchPendingRequest).
		Updates(map[string]interface{}{
			"status":      db.MatchActive,
			"user1_liked": true,
			"user2_liked": true,
			"viewed":      true,
			"expires_at":  time.Now().UTC().Add(ttl),
		})
	return res.RowsAffected, res.Error
}

// DeclinePending terminates a pending request. The row persists with
// status=declined; it simply drops out of every active-family query.
func (r *MatchRepository) DeclinePending(ctx context.Context, matchID, recipientID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND user2_id = ? AND status = ?", matchID, recipientID, db.MatchPendingRequest).
		Updates(map[string]interface{}{
			"status":      db.MatchDeclined,
			"user2_liked": false,
			"viewed":      true,
		})
	return res.RowsAffected, res.Error
}

// SetLiked writes one side's liked flag. both_liked stays derived, never stored.
func (r *MatchRepository) SetLiked(ctx context.Context, matchID uint64, side int, liked bool) (int64, error) {
	col := "user1_liked"
	if side == 2 {
		col = "user2_liked"
	}
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND status IN ?", matchID, db.ActiveFamily()).
		Update(col, liked)
	return res.RowsAffected, res.Error
}

// SetReveal writes one side's reveal flag. Status derivation happens in the
// service from a fresh read, not here.
func (r *MatchRepository) SetReveal(ctx context.Context, matchID uint64, side int, reveal bool) (int64, error) {
	col := "user1_reveal"
	if side == 2 {
		col = "user2_reveal"
	}
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND status IN ?", matchID, db.ActiveFamily()).
		Update(col, reveal)
	return res.RowsAffected, res.Error
}

// UpdateStatus moves a match between statuses, guarded on the expected
// current set. RowsAffected 0 means another writer got there first; callers
// re-read and re-derive instead of failing.
func (r *MatchRepository) UpdateStatus(ctx context.Context, matchID uint64, from []db.MatchStatus, to db.MatchStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND status IN ?", matchID, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// SetViewed marks a request as seen by the recipient.
func (r *MatchRepository) SetViewed(ctx context.Context, matchID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		Update("viewed", true).Error
}

// ListActiveFor returns every live match the user participates in, newest
// activity first.
func (r *MatchRepository) ListActiveFor(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("(user1_id = ? OR user2_id = ?)", userID, userID).
		Where("status IN ?", db.ActiveFamily()).
		Order("updated_at DESC, id DESC").
		Find(&matches).Error
	return matches, err
}

// PendingRequestsFor returns incoming requests for the recipient.
//
// Behavior:
//   - Only status=pending_request rows where the user is the recipient side.
//   - Ordered by updated_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.PendingRequestsFor(ctx, 42, nil, 20)
func (r *MatchRepository) PendingRequestsFor(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.Match, *string, error) {
	var matches []db.Match

	cursor, err := pagination.Parse(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("user2_id = ? AND status = ?", recipientID, db.MatchPendingRequest).
		Order("updated_at DESC, id DESC").
		Limit(limit + 1)

	if !cursor.Zero() {
		ts := cursor.UpdatedAt()
		query = query.Where(
			"(updated_at < ? OR (updated_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(matches) > limit {
		last := matches[limit-1]
		token := pagination.After(last.ID, last.UpdatedAt).Token()
		nextToken = &token
		matches = matches[:limit]
	}

	return matches, nextToken, nil
}

// CountPendingUnviewed counts incoming requests the recipient has not seen.
// Feeds the unread aggregator's bootstrap.
func (r *MatchRepository) CountPendingUnviewed(ctx context.Context, recipientID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user2_id = ? AND status = ? AND viewed = ?", recipientID, db.MatchPendingRequest, false).
		Count(&count).Error
	return count, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
