package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/db"
)

// SwipeRepository provides access to the append-only swipe log. Rows are
// never mutated or deleted; the log is the source of truth for exclusion-set
// reconciliation and for quota accounting fallbacks.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Append records one decision. Called only after the rate limiter admitted it.
func (r *SwipeRepository) Append(ctx context.Context, actorID, targetID uint64, action db.SwipeAction) (*db.Swipe, error) {
	s := db.Swipe{
		ActorID:  actorID,
		TargetID: targetID,
		Action:   action,
	}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// TargetIDs returns every profile id the actor has ever swiped on with the
// given action. Used to rebuild exclusion sets at session start.
func (r *SwipeRepository) TargetIDs(ctx context.Context, actorID uint64, action db.SwipeAction) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND action = ?", actorID, action).
		Distinct().
		Pluck("target_id", &ids).Error
	return ids, err
}

// CountSince counts the actor's swipes after the cutoff. DB-side fallback for
// the redis daily counter.
func (r *SwipeRepository) CountSince(ctx context.Context, actorID uint64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND created_at >= ?", actorID, since).
		Count(&count).Error
	return count, err
}
