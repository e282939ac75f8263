package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringList is a JSON-encoded []string column, portable across MySQL and SQLite.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return errors.New("unsupported type for StringList")
}

// Account is the identity row Profile.UserID points at. The engines reference
// users by id only; credentials exist for the auth layer around them.
type Account struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	LastLoginAt  time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Profile holds the per-user attributes completed during onboarding. Created
// with empty defaults at signup, mutated by the owning user only.
type Profile struct {
	UserID            uint64     `gorm:"primaryKey"`
	DisplayName       string     `gorm:"size:64"`
	Age               int        `gorm:"index"`
	Gender            string     `gorm:"size:16;index"`
	City              string     `gorm:"size:64;index"`
	Occupation        string     `gorm:"size:64"`
	Tagline           string     `gorm:"size:255"`
	MentalTags        StringList `gorm:"type:text"` // at most 3
	LookingFor        StringList `gorm:"type:text"`
	LoveLanguage      string     `gorm:"size:32"`
	TextStyle         string     `gorm:"size:32"`
	SocialHandle      string     `gorm:"size:64"`
	ChatStarter       string     `gorm:"size:255"`
	CurrentSong       string     `gorm:"size:128"`
	Ick               string     `gorm:"size:128"`
	GreenFlag         string     `gorm:"size:128"`
	IsActive          bool       `gorm:"default:true"`
	SubscriptionEnded bool      `gorm:"default:false"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// Match is the persistent record of a pairing between two users.
//
// Ordering of the id columns depends on origin: swipe-created matches store
// initiator/recipient, letter-promoted matches store canonical sorted order.
// The unordered-pair invariant (at most one active-family row per pair) is
// enforced by the repository's existing-match check, mirrored here by the
// idx_pair index used for that lookup.
type Match struct {
	ID          uint64      `gorm:"primaryKey;autoIncrement"`
	User1ID     uint64      `gorm:"not null;index:idx_pair,priority:1"`
	User2ID     uint64      `gorm:"not null;index:idx_pair,priority:2"`
	Status      MatchStatus `gorm:"size:32;not null;index"`
	ExpiresAt   time.Time   `gorm:"not null"`
	User1Liked  bool        `gorm:"not null"`
	User2Liked  bool        `gorm:"not null"`
	User1Reveal bool        `gorm:"not null"`
	User2Reveal bool        `gorm:"not null"`
	Viewed      bool        `gorm:"not null"`
	CreatedAt   time.Time   `gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime"`
}

// HasUser reports whether userID is one of the two participants.
func (m *Match) HasUser(userID uint64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// OtherUser returns the partner id relative to userID.
func (m *Match) OtherUser(userID uint64) (uint64, bool) {
	if m.User1ID == userID {
		return m.User2ID, true
	}
	if m.User2ID == userID {
		return m.User1ID, true
	}
	return 0, false
}

// Side returns 1 or 2 for the given participant, 0 for strangers.
func (m *Match) Side(userID uint64) int {
	switch userID {
	case m.User1ID:
		return 1
	case m.User2ID:
		return 2
	}
	return 0
}

// BothLiked is derived, never stored.
func (m *Match) BothLiked() bool { return m.User1Liked && m.User2Liked }

// BothReveal is derived, never stored.
func (m *Match) BothReveal() bool { return m.User1Reveal && m.User2Reveal }

// RevealOf returns the reveal flag for the given side.
func (m *Match) RevealOf(side int) bool {
	if side == 1 {
		return m.User1Reveal
	}
	return m.User2Reveal
}

// Expired is a pure function of now vs ExpiresAt; no stored flag exists.
func (m *Match) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// Remaining returns the time left in the chat window, clamped at zero.
func (m *Match) Remaining(now time.Time) time.Duration {
	if d := m.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// CanMessage combines status eligibility with lazy expiry.
func (m *Match) CanMessage(now time.Time) bool {
	return m.Status.Messaging() && !m.Expired(now)
}

// CanonicalPair sorts an unordered user pair into storage order for
// letter-promoted matches, so concurrent promotions target the same row.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// Message belongs to exactly one Match. Content is immutable once created;
// ReadAt is set when the receiver views the thread.
type Message struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement"`
	MatchID    uint64     `gorm:"not null;index:idx_match_receiver_read,priority:1"`
	SenderID   uint64     `gorm:"not null"`
	ReceiverID uint64     `gorm:"not null;index:idx_match_receiver_read,priority:2"`
	Content    string     `gorm:"type:text;not null"`
	ReadAt     *time.Time `gorm:"index:idx_match_receiver_read,priority:3"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
}

// Letter is an anonymous, randomly-routed note independent of Match.
type Letter struct {
	ID          uint64       `gorm:"primaryKey;autoIncrement"`
	SenderID    uint64       `gorm:"not null;index"`
	RecipientID uint64       `gorm:"not null;index"`
	Content     string       `gorm:"type:text;not null"`
	Status      LetterStatus `gorm:"size:32;not null;index"`
	Matched     bool         `gorm:"not null"`
	ReadAt      *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Swipe is an append-only log entry of a discovery decision. Never mutated or
// deleted; exclusion sets and quota accounting are reconstructed from it.
type Swipe struct {
	ID        uint64      `gorm:"primaryKey;autoIncrement"`
	ActorID   uint64      `gorm:"not null;index:idx_actor_target,priority:1"`
	TargetID  uint64      `gorm:"not null;index:idx_actor_target,priority:2"`
	Action    SwipeAction `gorm:"size:16;not null"`
	CreatedAt time.Time   `gorm:"autoCreateTime;index"`
}

// Coupon grants subscription access when redeemed. A row is single-use.
type Coupon struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	Code       string  `gorm:"uniqueIndex;size:64;not null"`
	Active     bool    `gorm:"default:true"`
	RedeemedBy *uint64 `gorm:"index"`
	RedeemedAt *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}
