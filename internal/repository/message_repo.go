package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/db"
)

// MessageRepository provides data access for the Message model.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Create persists a new message. Eligibility checks (match status, expiry)
// belong to the match service; by the time this runs they have passed.
func (r *MessageRepository) Create(ctx context.Context, matchID, senderID, receiverID uint64, content string) (*db.Message, error) {
	msg := db.Message{
		MatchID:    matchID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListForMatch returns the thread in chronological order.
func (r *MessageRepository) ListForMatch(ctx context.Context, matchID uint64, limit int) ([]db.Message, error) {
	var msgs []db.Message
	q := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&msgs).Error
	return msgs, err
}

// LastForMatch returns the newest message of a thread, or nil for an empty one.
// Used for list previews.
func (r *MessageRepository) LastForMatch(ctx context.Context, matchID uint64) (*db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// MarkThreadRead stamps every unread message addressed to the viewer in one
// batched UPDATE, not one write per message. Returns how many were marked, so
// re-opening an already-read thread is a visible no-op.
func (r *MessageRepository) MarkThreadRead(ctx context.Context, matchID, viewerID uint64) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND receiver_id = ? AND read_at IS NULL", matchID, viewerID).
		Update("read_at", now)
	return res.RowsAffected, res.Error
}

// CountUnread counts unread messages addressed to the viewer within one thread.
func (r *MessageRepository) CountUnread(ctx context.Context, matchID, viewerID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND receiver_id = ? AND read_at IS NULL", matchID, viewerID).
		Count(&count).Error
	return count, err
}
