package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/heartpost/internal/cache"
	"github.com/oggyb/heartpost/internal/config"
)

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg), mr
}

func TestIncrementDailySwipesSentinel(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	const limit = 3
	for want := int64(1); want <= limit; want++ {
		n, err := c.IncrementDailySwipes(ctx, 1, limit)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := c.IncrementDailySwipes(ctx, 1, limit)
	require.NoError(t, err)
	assert.Equal(t, cache.LimitReached, n)

	// the counter expires on its own at the day boundary
	key := c.KeyForDailySwipes(1, time.Now().UTC())
	assert.Greater(t, mr.TTL(key).Seconds(), 0.0)

	// quotas are per user
	n, err = c.IncrementDailySwipes(ctx, 2, limit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSeenSets(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)

	require.NoError(t, c.AddSeen(ctx, 1, 10, "like"))
	require.NoError(t, c.AddSeen(ctx, 1, 11, "like"))
	require.NoError(t, c.AddSeen(ctx, 1, 12, "pass"))

	liked, err := c.SeenIDs(ctx, 1, "like")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{10, 11}, liked)

	passed, err := c.SeenIDs(ctx, 1, "pass")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{12}, passed)

	require.NoError(t, c.ClearSeen(ctx, 1))

	liked, err = c.SeenIDs(ctx, 1, "like")
	require.NoError(t, err)
	assert.Empty(t, liked)
	passed, err = c.SeenIDs(ctx, 1, "pass")
	require.NoError(t, err)
	assert.Empty(t, passed)
}

func TestUnreadSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)

	type counts struct {
		Matches int `json:"matches"`
		Total   int `json:"total"`
	}

	var out counts
	ok, err := c.GetUnreadSnapshot(ctx, 1, &out)
	require.NoError(t, err)
	assert.False(t, ok, "cache miss is not an error")

	require.NoError(t, c.SetUnreadSnapshot(ctx, 1, counts{Matches: 2, Total: 5}))

	ok, err = c.GetUnreadSnapshot(ctx, 1, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, counts{Matches: 2, Total: 5}, out)
}
