package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/db"
)

// LetterRepository provides data access for the Letter model. Status moves are
// conditional updates guarded on the expected current status, so reciprocal
// promotion races collapse into no-ops instead of double transitions.
type LetterRepository struct {
	db *gorm.DB
}

// NewLetterRepository creates a new repository bound to the given DB connection.
func NewLetterRepository(database *gorm.DB) *LetterRepository {
	return &LetterRepository{db: database}
}

// Create persists a freshly routed letter with status=pending.
func (r *LetterRepository) Create(ctx context.Context, senderID, recipientID uint64, content string) (*db.Letter, error) {
	l := db.Letter{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Status:      db.LetterPending,
	}
	if err := r.db.WithContext(ctx).Create(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// Get loads one letter by id.
func (r *LetterRepository) Get(ctx context.Context, id uint64) (*db.Letter, error) {
	var l db.Letter
	if err := r.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// SetStatus moves a letter between statuses, guarded on the current one.
// Returns rows affected; 0 means another writer already transitioned it.
func (r *LetterRepository) SetStatus(ctx context.Context, id uint64, from []db.LetterStatus, to db.LetterStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Letter{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// FindReciprocalLiked looks for the mirror letter (sender and recipient
// swapped) that the other party already liked.
//
// Example: letter 7→17 was just liked; the reciprocal is a liked letter 17→7.
func (r *LetterRepository) FindReciprocalLiked(ctx context.Context, senderID, recipientID uint64) (*db.Letter, error) {
	var letters []db.Letter
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND recipient_id = ? AND status = ?", senderID, recipientID, db.LetterLiked).
		Order("id ASC").
		Limit(1).
		Find(&letters).Error
	if err != nil {
		return nil, err
	}
	if len(letters) == 0 {
		return nil, nil
	}
	return &letters[0], nil
}

// PromotePair flips both letters of a mutual like to matched=true,
// status=matched in a single transaction.
//
// Behavior:
//   - Both rows must still be in status=liked; anything else aborts the
//     transaction and reports a stale read, letting the caller re-query.
//   - Safe to retry from scratch: a pair already promoted affects 0 rows and
//     the caller falls through to the existing-match lookup.
func (r *LetterRepository) PromotePair(ctx context.Context, id1, id2 uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Letter{}).
			Where("id IN ? AND status = ?", []uint64{id1, id2}, db.LetterLiked).
			Updates(map[string]interface{}{
				"status":  db.LetterMatched,
				"matched": true,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 2 {
			return fmt.Errorf("letter pair (%d,%d) changed underneath promotion", id1, id2)
		}
		return nil
	})
}

// InboxFor returns letters addressed to the user that still need attention
// (pending decisions plus liked/matched ones not yet turned into chats).
func (r *LetterRepository) InboxFor(ctx context.Context, recipientID uint64) ([]db.Letter, error) {
	var letters []db.Letter
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status IN ?", recipientID,
			[]db.LetterStatus{db.LetterPending, db.LetterLiked, db.LetterMatched}).
		Order("created_at DESC, id DESC").
		Find(&letters).Error
	return letters, err
}

// SentBy returns the user's outgoing letters, newest first.
func (r *LetterRepository) SentBy(ctx context.Context, senderID uint64) ([]db.Letter, error) {
	var letters []db.Letter
	err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("created_at DESC, id DESC").
		Find(&letters).Error
	return letters, err
}

// MarkRead stamps the letter's read_at once; re-reads are no-ops.
func (r *LetterRepository) MarkRead(ctx context.Context, id, recipientID uint64) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&db.Letter{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", id, recipientID).
		Update("read_at", now)
	return res.RowsAffected, res.Error
}

// CountUnreadFor counts letters addressed to the user with read_at unset.
// Feeds the unread aggregator's bootstrap.
func (r *LetterRepository) CountUnreadFor(ctx context.Context, recipientID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Letter{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	return count, err
}
