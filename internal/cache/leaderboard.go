/*
 * file: leaderboard.go
 * package: cache
 * description:
 *     Cache-aside wrapper over the global and per-chat leaderboard
 *     reads, backed by Redis sorted sets mirroring total_points. Never
 *     consulted for gameplay-affecting decisions — the relational
 *     store remains the sole source of truth the GameEngine reads and
 *     writes.
 */

package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kts-backend/fow-bot/internal/core/domain"
	"github.com/kts-backend/fow-bot/internal/core/ports"
)

const (
	globalKey     = "fow:leaderboard:global"
	globalMetaKey = "fow:leaderboard:global:meta"
	chatKeyPrefix = "fow:leaderboard:chat:"
)

type userMeta struct {
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// LeaderboardCache serves the global and per-chat leaderboards through
// a short-TTL Redis sorted-set cache: one ZSET member per user keyed
// by vk_id with total_points as score, plus a companion hash carrying
// the name/last name the score alone can't. With no configured address
// it is a transparent passthrough to compute.
type LeaderboardCache struct {
	store ports.Store
	rdb   *redis.Client
	ttl   time.Duration
}

// New builds a LeaderboardCache. addr == "" disables Redis entirely.
func New(store ports.Store, addr string, ttl time.Duration) *LeaderboardCache {
	var rdb *redis.Client
	if addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
	}
	return &LeaderboardCache{store: store, rdb: rdb, ttl: ttl}
}

// Global returns every user ordered by total_points desc, preferring
// the cached sorted set when Redis is configured and populated.
func (c *LeaderboardCache) Global(ctx context.Context) ([]domain.User, error) {
	return c.board(ctx, globalKey, globalMetaKey, c.store.ListAllUsersByPoints)
}

// PerChat returns the leaderboard for chatID, computed by compute on a
// cache miss and mirrored into fow:leaderboard:chat:<chatID> for the
// next few seconds — long enough to absorb a burst of requests right
// after a game ends, short enough to never matter to gameplay, which
// never reads through this cache.
func (c *LeaderboardCache) PerChat(ctx context.Context, chatID int64, compute func(context.Context) ([]domain.User, error)) ([]domain.User, error) {
	key := chatKeyPrefix + strconv.FormatInt(chatID, 10)
	return c.board(ctx, key, key+":meta", compute)
}

func (c *LeaderboardCache) board(ctx context.Context, zkey, mkey string, compute func(context.Context) ([]domain.User, error)) ([]domain.User, error) {
	if c.rdb == nil {
		return compute(ctx)
	}

	if users, ok := c.readBoard(ctx, zkey, mkey); ok {
		return users, nil
	}

	users, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.writeBoard(ctx, zkey, mkey, users)
	return users, nil
}

func (c *LeaderboardCache) readBoard(ctx context.Context, zkey, mkey string) ([]domain.User, bool) {
	entries, err := c.rdb.ZRevRangeWithScores(ctx, zkey, 0, -1).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		id, ok := e.Member.(string)
		if !ok {
			return nil, false
		}
		ids[i] = id
	}

	metas, err := c.rdb.HMGet(ctx, mkey, ids...).Result()
	if err != nil {
		return nil, false
	}

	users := make([]domain.User, 0, len(entries))
	for i, e := range entries {
		vkID, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			return nil, false
		}

		var meta userMeta
		if s, ok := metas[i].(string); ok {
			_ = json.Unmarshal([]byte(s), &meta)
		}

		users = append(users, domain.User{
			VkID:        vkID,
			Name:        meta.Name,
			LastName:    meta.LastName,
			TotalPoints: int64(e.Score),
		})
	}
	return users, true
}

func (c *LeaderboardCache) writeBoard(ctx context.Context, zkey, mkey string, users []domain.User) {
	if len(users) == 0 {
		return
	}

	members := make([]redis.Z, 0, len(users))
	pipe := c.rdb.Pipeline()
	for _, u := range users {
		id := strconv.FormatInt(u.VkID, 10)
		members = append(members, redis.Z{Score: float64(u.TotalPoints), Member: id})
		if raw, err := json.Marshal(userMeta{Name: u.Name, LastName: u.LastName}); err == nil {
			pipe.HSet(ctx, mkey, id, raw)
		}
	}
	pipe.ZAdd(ctx, zkey, members...)
	pipe.Expire(ctx, zkey, c.ttl)
	pipe.Expire(ctx, mkey, c.ttl)
	_, _ = pipe.Exec(ctx)
}

// Invalidate drops the cached global leaderboard. Called by anything
// that just ran BulkIncrementUserPoints.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	c.rdb.Del(ctx, globalKey, globalMetaKey)
}

// Close releases the underlying Redis client, if any.
func (c *LeaderboardCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// InvalidatingStore wraps a ports.Store so that BulkIncrementUserPoints
// — the sole place total_points changes — also drops the cached
// global leaderboard, keeping it from serving stale totals. Per-chat
// entries are left to their short TTL: a bulk increment never targets
// a single chat cleanly (deltas are keyed by user, not chat), so
// expiry rather than targeted invalidation is what bounds their
// staleness.
type InvalidatingStore struct {
	ports.Store
	cache *LeaderboardCache
}

// WrapStore returns store decorated with cache invalidation.
func WrapStore(store ports.Store, cache *LeaderboardCache) ports.Store {
	return &InvalidatingStore{Store: store, cache: cache}
}

func (s *InvalidatingStore) BulkIncrementUserPoints(ctx context.Context, deltas map[int64]int64) error {
	if err := s.Store.BulkIncrementUserPoints(ctx, deltas); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}
