package pagination_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/heartpost/internal/utils/pagination"
)

func TestTokenRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	c := pagination.After(42, at)

	got, err := pagination.Parse(c.Token())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.ID)
	assert.True(t, got.UpdatedAt().Equal(at))
	assert.False(t, got.Zero())
}

func TestParseEmptyAndBadTokens(t *testing.T) {
	c, err := pagination.Parse("")
	require.NoError(t, err)
	assert.True(t, c.Zero())

	_, err = pagination.Parse("not base64!!")
	assert.ErrorIs(t, err, pagination.ErrBadToken)

	// valid base64, not a cursor
	_, err = pagination.Parse("bm90IGpzb24=")
	assert.ErrorIs(t, err, pagination.ErrBadToken)
}
