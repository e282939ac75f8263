package discovery_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/app"
	"github.com/oggyb/heartpost/internal/cache"
	"github.com/oggyb/heartpost/internal/config"
	"github.com/oggyb/heartpost/internal/db"
	svcErr "github.com/oggyb/heartpost/internal/errors"
	"github.com/oggyb/heartpost/internal/repository"
	"github.com/oggyb/heartpost/internal/rpc"
	"github.com/oggyb/heartpost/internal/service/discovery"
	"github.com/oggyb/heartpost/internal/service/match"
)

const dailyLimit = 3

func setupSession(t *testing.T, userID uint64) (*discovery.Session, *app.AppContext, *miniredis.Miniredis) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	rdb := cache.NewRedisCache(cfg)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(cfg, database, rdb, log)

	procs := rpc.NewStore(database, rdb, dailyLimit)
	matchSvc := match.NewService(appCtx, nil, 7*24*time.Hour)
	sess := discovery.NewSession(appCtx, procs, matchSvc, userID, rpc.Preferences{})
	require.NoError(t, sess.Load(context.Background()))
	return sess, appCtx, mr
}

func seedProfiles(t *testing.T, database *gorm.DB, profiles ...db.Profile) {
	t.Helper()
	for i := range profiles {
		require.NoError(t, database.Create(&profiles[i]).Error)
	}
}

func TestSwipeQuotaBoundary(t *testing.T) {
	ctx := context.Background()
	sess, appCtx, _ := setupSession(t, 1)

	// the Nth swipe is admitted
	for target := uint64(2); target < 2+dailyLimit; target++ {
		_, err := sess.RecordSwipe(ctx, target, db.SwipePass)
		require.NoError(t, err)
	}

	// the N+1th is rejected before any side effect
	_, err := sess.RecordSwipe(ctx, 99, db.SwipePass)
	require.True(t, svcErr.Is(err, svcErr.ErrRateLimited))

	swipes := repository.NewSwipeRepository(appCtx.DB)
	count, err := swipes.CountSince(ctx, 1, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(dailyLimit), count, "rejected swipe must not reach the log")

	var matches int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&matches).Error)
	assert.Equal(t, int64(0), matches)
}

func TestRejectedLikeCreatesNoMatch(t *testing.T) {
	ctx := context.Background()
	sess, appCtx, _ := setupSession(t, 1)

	for target := uint64(2); target < 2+dailyLimit; target++ {
		_, err := sess.RecordSwipe(ctx, target, db.SwipePass)
		require.NoError(t, err)
	}

	_, err := sess.RecordSwipe(ctx, 42, db.SwipeLike)
	require.True(t, svcErr.Is(err, svcErr.ErrRateLimited))

	var matches int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&matches).Error)
	assert.Equal(t, int64(0), matches)
}

func TestLikeHandsOffToMatchEngine(t *testing.T) {
	ctx := context.Background()
	sess, _, _ := setupSession(t, 1)

	m, err := sess.RecordSwipe(ctx, 2, db.SwipeLike)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, db.MatchPendingRequest, m.Status)

	// a pass never produces a match
	m, err = sess.RecordSwipe(ctx, 3, db.SwipePass)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSwipeValidation(t *testing.T) {
	ctx := context.Background()
	sess, _, _ := setupSession(t, 1)

	_, err := sess.RecordSwipe(ctx, 1, db.SwipeLike)
	assert.True(t, svcErr.Is(err, svcErr.ErrValidation))

	_, err = sess.RecordSwipe(ctx, 2, db.SwipeAction("superlike"))
	assert.True(t, svcErr.Is(err, svcErr.ErrValidation))
}

func TestExclusionsSuppressSwipedProfiles(t *testing.T) {
	ctx := context.Background()
	sess, appCtx, _ := setupSession(t, 1)

	seedProfiles(t, appCtx.DB,
		db.Profile{UserID: 2, DisplayName: "A", IsActive: true},
		db.Profile{UserID: 3, DisplayName: "B", IsActive: true},
	)

	_, err := sess.RecordSwipe(ctx, 2, db.SwipePass)
	require.NoError(t, err)

	// only the unswiped profile remains in the deck
	p, err := sess.NextCandidate(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(3), p.UserID)

	_, err = sess.RecordSwipe(ctx, 3, db.SwipeLike)
	require.NoError(t, err)

	// empty deck is (nil, nil), not an error
	p, err = sess.NextCandidate(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadReconcilesCacheAndLog(t *testing.T) {
	ctx := context.Background()
	_, appCtx, _ := setupSession(t, 1)

	seedProfiles(t, appCtx.DB,
		db.Profile{UserID: 2, DisplayName: "A", IsActive: true},
		db.Profile{UserID: 3, DisplayName: "B", IsActive: true},
	)

	// one exclusion only in the log, one only in the cache
	swipes := repository.NewSwipeRepository(appCtx.DB)
	_, err := swipes.Append(ctx, 1, 2, db.SwipePass)
	require.NoError(t, err)
	require.NoError(t, appCtx.RedisCache.AddSeen(ctx, 1, 3, "like"))

	fresh := discovery.NewSession(appCtx,
		rpc.NewStore(appCtx.DB, appCtx.RedisCache, dailyLimit),
		match.NewService(appCtx, nil, 7*24*time.Hour), 1, rpc.Preferences{})
	require.NoError(t, fresh.Load(ctx))

	p, err := fresh.NextCandidate(ctx)
	require.NoError(t, err)
	assert.Nil(t, p, "both sources must contribute exclusions")
}

// timedOutProcs simulates a collaborator that exceeded its deadline.
type timedOutProcs struct{ rpc.Procedures }

func (timedOutProcs) RandomProfile(context.Context, uint64, rpc.Preferences, []uint64) (*db.Profile, error) {
	return nil, context.DeadlineExceeded
}

func TestSlowCollaboratorIsTransientNotEmptyDeck(t *testing.T) {
	ctx := context.Background()
	_, appCtx, _ := setupSession(t, 1)

	sess := discovery.NewSession(appCtx, timedOutProcs{},
		match.NewService(appCtx, nil, 7*24*time.Hour), 1, rpc.Preferences{})

	p, err := sess.NextCandidate(ctx)
	assert.Nil(t, p)
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.ErrTransient), "timeout must not read as an empty deck")
}

func TestSetPreferencesResetsExclusions(t *testing.T) {
	ctx := context.Background()
	sess, appCtx, mr := setupSession(t, 1)

	seedProfiles(t, appCtx.DB,
		db.Profile{UserID: 2, DisplayName: "A", Age: 30, IsActive: true},
	)

	_, err := sess.RecordSwipe(ctx, 2, db.SwipePass)
	require.NoError(t, err)

	p, err := sess.NextCandidate(ctx)
	require.NoError(t, err)
	require.Nil(t, p)

	require.NoError(t, sess.SetPreferences(ctx, rpc.Preferences{MinAge: 25, MaxAge: 35}))
	assert.Equal(t, 25, sess.Preferences().MinAge)
	assert.False(t, mr.Exists("swipes:seen:pass:1"))

	// previously-skipped profiles are admitted again
	p, err = sess.NextCandidate(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(2), p.UserID)
}
