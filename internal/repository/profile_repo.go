package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/db"
)

// ProfileRepository provides data access for the Profile model.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Get loads one profile by owning user id.
func (r *ProfileRepository) Get(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateEmpty inserts the signup-time profile shell with empty defaults.
func (r *ProfileRepository) CreateEmpty(ctx context.Context, userID uint64) (*db.Profile, error) {
	p := db.Profile{UserID: userID, IsActive: true}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Update saves onboarding edits. The owning user is the only writer; the
// caller has already established identity.
func (r *ProfileRepository) Update(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// CandidateIDs returns ids of profiles eligible for the viewer's discovery
// deck: active, matching the preference filter, not the viewer, not already
// swiped on.
func (r *ProfileRepository) CandidateIDs(
	ctx context.Context,
	viewerID uint64,
	minAge, maxAge int,
	gender, city string,
	exclude []uint64,
) ([]uint64, error) {
	q := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("is_active = ? AND subscription_ended = ?", true, false).
		Where("user_id <> ?", viewerID)

	if minAge > 0 {
		q = q.Where("age >= ?", minAge)
	}
	if maxAge > 0 {
		q = q.Where("age <= ?", maxAge)
	}
	if gender != "" {
		q = q.Where("gender = ?", gender)
	}
	if city != "" {
		q = q.Where("city = ?", city)
	}
	if len(exclude) > 0 {
		q = q.Where("user_id NOT IN ?", exclude)
	}

	var ids []uint64
	err := q.Pluck("user_id", &ids).Error
	return ids, err
}

// EligibleRecipientIDs returns ids of profiles a letter from the sender may be
// routed to: active, not the sender, and without a still-pending letter from
// this sender already in their inbox.
func (r *ProfileRepository) EligibleRecipientIDs(ctx context.Context, senderID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("is_active = ? AND subscription_ended = ?", true, false).
		Where("user_id <> ?", senderID).
		Where(`NOT EXISTS (
			SELECT 1 FROM letters l
			WHERE l.sender_id = ?
			  AND l.recipient_id = profiles.user_id
			  AND l.status = ?
		)`, senderID, db.LetterPending).
		Pluck("user_id", &ids).Error
	return ids, err
}
