package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/heartpost/internal/config"
)

// LimitReached is the sentinel returned by IncrementDailySwipes once the
// daily quota is exhausted. Callers branch on it; it is not an error.
const LimitReached int64 = -1

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// --- daily swipe counter ---

// KeyForDailySwipes generates the counter key for a user on the given day.
func (c *RedisCache) KeyForDailySwipes(userID uint64, day time.Time) string {
	return fmt.Sprintf("swipes:daily:%d:%s", userID, day.UTC().Format("2006-01-02"))
}

// IncrementDailySwipes atomically bumps the user's counter for today and
// returns the new value, or LimitReached once limit is exceeded. The key
// expires at the next UTC midnight so the quota resets by itself.
func (c *RedisCache) IncrementDailySwipes(ctx context.Context, userID uint64, limit int) (int64, error) {
	now := time.Now().UTC()
	key := c.KeyForDailySwipes(userID, now)

	n, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		_ = c.Client.ExpireAt(ctx, key, midnight).Err()
	}
	if n > int64(limit) {
		return LimitReached, nil
	}
	return n, nil
}

// --- exclusion sets ---

func (c *RedisCache) keyForSeen(userID uint64, action string) string {
	return fmt.Sprintf("swipes:seen:%s:%d", action, userID)
}

// AddSeen records a swiped-on target in the persisted exclusion set.
func (c *RedisCache) AddSeen(ctx context.Context, userID, targetID uint64, action string) error {
	return c.Client.SAdd(ctx, c.keyForSeen(userID, action), targetID).Err()
}

// SeenIDs returns the persisted exclusion set for one action ("like"/"pass").
func (c *RedisCache) SeenIDs(ctx context.Context, userID uint64, action string) ([]uint64, error) {
	members, err := c.Client.SMembers(ctx, c.keyForSeen(userID, action)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClearSeen drops both exclusion sets, used when preferences change.
func (c *RedisCache) ClearSeen(ctx context.Context, userID uint64) error {
	return c.Client.Del(ctx,
		c.keyForSeen(userID, "like"),
		c.keyForSeen(userID, "pass"),
	).Err()
}

// --- unread snapshot ---

// KeyForUnread generates the key holding a user's last unread snapshot.
func (c *RedisCache) KeyForUnread(userID uint64) string {
	return fmt.Sprintf("unread:snapshot:%d", userID)
}

// SetUnreadSnapshot stores the aggregator's current counts, best effort.
func (c *RedisCache) SetUnreadSnapshot(ctx context.Context, userID uint64, snapshot any) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.KeyForUnread(userID), b, time.Hour).Err()
}

// GetUnreadSnapshot loads the last stored snapshot into out. A cache miss
// returns false with no error.
func (c *RedisCache) GetUnreadSnapshot(ctx context.Context, userID uint64, out any) (bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForUnread(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(val), out)
}

// Publish forwards to the underlying client; the realtime and notify layers
// ride on the same connection.
func (c *RedisCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Client.Publish(ctx, channel, payload).Err()
}
