package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	summaryKeyPrefix     = "ledger:summary:"
	summaryGenerationKey = "ledger:summary:generation"
)

// RedisSummaryCache stores summaries in Redis. Invalidation bumps a
// generation counter that is part of every key, so stale entries are never
// read and simply expire.
type RedisSummaryCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSummaryCache constructs the cache. A non-positive ttl defaults to
// five minutes.
func NewRedisSummaryCache(client redis.UniversalClient, ttl time.Duration) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSummaryCache{client: client, ttl: ttl}
}

func (c *RedisSummaryCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, summaryGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisSummaryCache) entryKey(gen int64, key string) string {
	return summaryKeyPrefix + strconv.FormatInt(gen, 10) + ":" + key
}

// Get implements SummaryCache.
func (c *RedisSummaryCache) Get(ctx context.Context, key string) (FinancialSummary, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return FinancialSummary{}, false, err
	}
	data, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return FinancialSummary{}, false, nil
		}
		return FinancialSummary{}, false, err
	}
	var summary FinancialSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return FinancialSummary{}, false, err
	}
	return summary, true, nil
}

// Set implements SummaryCache.
func (c *RedisSummaryCache) Set(ctx context.Context, key string, summary FinancialSummary) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.entryKey(gen, key), data, c.ttl).Err()
}

// Invalidate implements SummaryCache.
func (c *RedisSummaryCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, summaryGenerationKey).Err()
}
