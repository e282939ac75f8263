// Package rpc mirrors the row-level functions the hosted backend used to own:
// random recipient/profile selection, the daily swipe counter, and coupon
// activation. The engines treat these as opaque calls.
package rpc

import (
	"context"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/cache"
	"github.com/oggyb/heartpost/internal/db"
	apperr "github.com/oggyb/heartpost/internal/errors"
	"github.com/oggyb/heartpost/internal/repository"
)

// Preferences is the discovery filter a viewer applies to candidates.
type Preferences struct {
	MinAge int
	MaxAge int
	Gender string
	City   string
}

// Procedures is the collaborator contract the engines call. A nil profile
// with a nil error means "no candidates", which callers must treat
// differently from a failure.
type Procedures interface {
	// RandomRecipient picks an eligible letter recipient for the sender.
	RandomRecipient(ctx context.Context, senderID uint64) (uint64, error)
	// RandomProfile picks the next discovery candidate, or (nil, nil) when
	// the deck is exhausted.
	RandomProfile(ctx context.Context, userID uint64, prefs Preferences, exclude []uint64) (*db.Profile, error)
	// IncrementSwipeCount bumps the daily counter; cache.LimitReached (-1)
	// signals the quota is gone.
	IncrementSwipeCount(ctx context.Context, userID uint64) (int64, error)
	// ValidateCouponAndActivate redeems a coupon for the user, reopening
	// their subscription. False means the code was invalid or spent.
	ValidateCouponAndActivate(ctx context.Context, code string, userID uint64) (bool, error)
}

// Store is the SQL+redis-backed Procedures implementation.
type Store struct {
	db       *gorm.DB
	cache    *cache.RedisCache
	profiles *repository.ProfileRepository
	limit    int
	rand     *rand.Rand
}

// NewStore wires the default implementation. dailyLimit guards swipe volume.
func NewStore(database *gorm.DB, rdb *cache.RedisCache, dailyLimit int) *Store {
	return &Store{
		db:       database,
		cache:    rdb,
		profiles: repository.NewProfileRepository(database),
		limit:    dailyLimit,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RandomRecipient picks uniformly among eligible inboxes.
func (s *Store) RandomRecipient(ctx context.Context, senderID uint64) (uint64, error) {
	ids, err := s.profiles.EligibleRecipientIDs(ctx, senderID)
	if err != nil {
		return 0, apperr.Map(err)
	}
	if len(ids) == 0 {
		return 0, apperr.NotFound("no eligible recipients for sender %d", senderID)
	}
	return ids[s.rand.Intn(len(ids))], nil
}

// RandomProfile picks uniformly among deck candidates; (nil, nil) when empty.
func (s *Store) RandomProfile(ctx context.Context, userID uint64, prefs Preferences, exclude []uint64) (*db.Profile, error) {
	ids, err := s.profiles.CandidateIDs(ctx, userID, prefs.MinAge, prefs.MaxAge, prefs.Gender, prefs.City, exclude)
	if err != nil {
		return nil, apperr.Map(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	p, err := s.profiles.Get(ctx, ids[s.rand.Intn(len(ids))])
	if err != nil {
		return nil, apperr.Map(err)
	}
	return p, nil
}

// IncrementSwipeCount delegates to the redis counter.
func (s *Store) IncrementSwipeCount(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.cache.IncrementDailySwipes(ctx, userID, s.limit)
	if err != nil {
		return 0, apperr.Map(err)
	}
	return n, nil
}

// ValidateCouponAndActivate redeems the code in one conditional write, then
// reopens the user's subscription. A spent or unknown code returns false.
func (s *Store) ValidateCouponAndActivate(ctx context.Context, code string, userID uint64) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&db.Coupon{}).
		Where("code = ? AND active = ? AND redeemed_by IS NULL", code, true).
		Updates(map[string]interface{}{
			"redeemed_by": userID,
			"redeemed_at": now,
		})
	if res.Error != nil {
		return false, apperr.Map(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	err := s.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Update("subscription_ended", false).Error
	if err != nil {
		return false, apperr.Map(err)
	}
	return true, nil
}
