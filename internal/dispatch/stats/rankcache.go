package stats

import (
	"context"
	"fmt"

	"rivoj/internal/common/cache"
	appErr "rivoj/pkg/errors"
)

const rankCachePrefix = "contest:rank_cache:"

// ContestRankCache stores rendered leaderboards in Redis. Rank queries fall
// back to this cache and recompute from the rank rows on a miss; the updater
// only ever invalidates.
type ContestRankCache struct {
	cache cache.Cache
}

func NewContestRankCache(c cache.Cache) *ContestRankCache {
	return &ContestRankCache{cache: c}
}

// Key returns the cache key for one contest's leaderboard.
func Key(contestID int64) string {
	return fmt.Sprintf("%s%d", rankCachePrefix, contestID)
}

// Invalidate drops the cached leaderboard for a contest.
func (c *ContestRankCache) Invalidate(ctx context.Context, contestID int64) error {
	if err := c.cache.Del(ctx, Key(contestID)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "invalidate rank cache failed")
	}
	return nil
}
