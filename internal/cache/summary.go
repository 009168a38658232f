// Package cache keeps read-heavy ledger aggregates in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

const defaultSummaryTTL = 5 * time.Minute

// SummaryCache is a cache-aside layer for seller commission summaries.
// A nil client turns every call into a miss, so the database is always consulted.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = defaultSummaryTTL
	}
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

func SummaryKey(sellerID string) string {
	return fmt.Sprintf("commission:summary:%s", sellerID)
}

// Get returns the cached summary and whether it was a hit.
func (c *SummaryCache) Get(ctx context.Context, sellerID string) (*model.CommissionSummary, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, SummaryKey(sellerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("summary cache get failed", zap.String("seller_id", sellerID), zap.Error(err))
		}
		return nil, false
	}
	var out model.CommissionSummary
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Warn("summary cache payload corrupt", zap.String("seller_id", sellerID), zap.Error(err))
		return nil, false
	}
	return &out, true
}

func (c *SummaryCache) Set(ctx context.Context, s *model.CommissionSummary) {
	if c == nil || c.rdb == nil || s == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, SummaryKey(s.SellerID), payload, c.ttl).Err(); err != nil {
		logger.Warn("summary cache set failed", zap.String("seller_id", s.SellerID), zap.Error(err))
	}
}

// Invalidate drops the cached summaries of the given sellers in one pipeline.
func (c *SummaryCache) Invalidate(ctx context.Context, sellerIDs ...string) {
	if c == nil || c.rdb == nil || len(sellerIDs) == 0 {
		return
	}
	pipe := c.rdb.Pipeline()
	for _, id := range sellerIDs {
		pipe.Del(ctx, SummaryKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("summary cache invalidate failed", zap.Strings("seller_ids", sellerIDs), zap.Error(err))
	}
}

// Ping reports Redis health; a disabled cache is healthy.
func (c *SummaryCache) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// NewRedisClient returns nil when addr is empty, which disables caching.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}
