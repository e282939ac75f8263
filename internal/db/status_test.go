package db_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oggyb/heartpost/internal/db"
)

func TestMatchStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to db.MatchStatus
		ok       bool
	}{
		{db.MatchPendingRequest, db.MatchActive, true},
		{db.MatchPendingRequest, db.MatchDeclined, true},
		{db.MatchPendingRequest, db.MatchRevealed, false},
		{db.MatchActive, db.MatchRevealed, true},
		{db.MatchRevealed, db.MatchPendingReveal, true},
		{db.MatchPendingReveal, db.MatchRevealed, true},
		{db.MatchDeclined, db.MatchActive, false},
		{db.MatchActive, db.MatchPendingRequest, false},
	}

	for _, c := range cases {
		got := c.from.CanTransition(c.to)
		assert.Equal(t, c.ok, got, "%s -> %s", c.from, c.to)

		_, err := c.from.Transition(c.to)
		if c.ok {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}
	}
}

func TestActiveFamily(t *testing.T) {
	for _, s := range db.ActiveFamily() {
		assert.True(t, s.InActiveFamily(), "%s", s)
	}
	assert.False(t, db.MatchDeclined.InActiveFamily())
}

func TestMessagingEligibility(t *testing.T) {
	assert.False(t, db.MatchPendingRequest.Messaging())
	assert.False(t, db.MatchDeclined.Messaging())
	assert.True(t, db.MatchActive.Messaging())
	assert.True(t, db.MatchRevealed.Messaging())
	assert.True(t, db.MatchPendingReveal.Messaging())
}

func TestLetterStatusTransitions(t *testing.T) {
	assert.True(t, db.LetterPending.CanTransition(db.LetterLiked))
	assert.True(t, db.LetterPending.CanTransition(db.LetterDeclined))
	assert.True(t, db.LetterLiked.CanTransition(db.LetterMatched))
	assert.True(t, db.LetterLiked.CanTransition(db.LetterStartedChat))
	assert.True(t, db.LetterMatched.CanTransition(db.LetterStartedChat))
	assert.False(t, db.LetterDeclined.CanTransition(db.LetterLiked))
	assert.False(t, db.LetterStartedChat.CanTransition(db.LetterPending))
	assert.False(t, db.LetterPending.CanTransition(db.LetterMatched))
}

// Expiry is a pure function of now vs expires_at; no stored flag, so nothing
// survives a restart to contradict it.
func TestMatchExpiryPurity(t *testing.T) {
	now := time.Now().UTC()
	m := db.Match{Status: db.MatchActive, ExpiresAt: now.Add(-time.Minute)}

	assert.True(t, m.Expired(now))
	assert.False(t, m.CanMessage(now))
	assert.Equal(t, time.Duration(0), m.Remaining(now))

	m.ExpiresAt = now.Add(time.Hour)
	assert.False(t, m.Expired(now))
	assert.True(t, m.CanMessage(now))
	assert.Equal(t, time.Hour, m.Remaining(now))
}

func TestCanonicalPair(t *testing.T) {
	a, b := db.CanonicalPair(17, 7)
	assert.Equal(t, uint64(7), a)
	assert.Equal(t, uint64(17), b)

	a, b = db.CanonicalPair(7, 17)
	assert.Equal(t, uint64(7), a)
	assert.Equal(t, uint64(17), b)
}

func TestMatchHelpers(t *testing.T) {
	m := db.Match{User1ID: 1, User2ID: 2, User1Liked: true}

	partner, ok := m.OtherUser(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), partner)

	_, ok = m.OtherUser(99)
	assert.False(t, ok)

	assert.Equal(t, 1, m.Side(1))
	assert.Equal(t, 2, m.Side(2))
	assert.Equal(t, 0, m.Side(99))

	assert.False(t, m.BothLiked())
	m.User2Liked = true
	assert.True(t, m.BothLiked())
}
