// Package cache holds the short-TTL availability response cache.
// Availability is read far more often than it changes; a few seconds
// of staleness is acceptable because the booking arbiter re-validates
// every slot at commit time anyway.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// AvailabilityCache caches rendered availability payloads in Redis,
// keyed by provider and date. Every method fails open: a cache error
// is logged and treated as a miss so Redis outages never block reads.
type AvailabilityCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewAvailabilityCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *AvailabilityCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &AvailabilityCache{rdb: rdb, ttl: ttl, logger: logger}
}

func key(providerID, serviceID, date string) string {
	return "availability:" + providerID + ":" + serviceID + ":" + date
}

func (c *AvailabilityCache) Get(ctx context.Context, providerID, serviceID, date string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	payload, err := c.rdb.Get(ctx, key(providerID, serviceID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("availability cache read failed", "err", err)
		}
		return nil, false
	}
	return payload, true
}

func (c *AvailabilityCache) Set(ctx context.Context, providerID, serviceID, date string, payload []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key(providerID, serviceID, date), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "err", err)
	}
}

// InvalidateProvider drops every cached day for a provider. Called
// after any write that changes the provider's calendar; scanning by
// prefix keeps the invalidation independent of which service duration
// the cached responses were computed with.
func (c *AvailabilityCache) InvalidateProvider(ctx context.Context, providerID string) {
	if c == nil || c.rdb == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, "availability:"+providerID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("availability cache scan failed", "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("availability cache invalidation failed", "err", err)
	}
}

// ReadyCheck pings Redis for /readyz.
func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
