package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chronicle/internal/config"
	"chronicle/internal/constants"
	"chronicle/internal/logger"
	"chronicle/pkg/metrics"
)

// DedupCache marks event ids with a TTL so duplicate ids can be caught
// at ingestion before they hit the log.
type DedupCache interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisDedupCache struct {
	client *redis.Client
}

func NewRedisDedupCache(client *redis.Client) *RedisDedupCache {
	return &RedisDedupCache{client: client}
}

func (c *RedisDedupCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	firstSeen, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return firstSeen, nil
}

// DuplicateGuard answers whether an event id has been seen before. On a
// cache outage it falls back per configuration rather than blocking
// ingestion.
type DuplicateGuard struct {
	cache  DedupCache
	cfg    config.DedupConfig
	logger logger.Logger
}

func NewDuplicateGuard(cache DedupCache, cfg config.DedupConfig, log logger.Logger) *DuplicateGuard {
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = constants.DefaultEventIDTTLSeconds
	}
	return &DuplicateGuard{cache: cache, cfg: cfg, logger: log}
}

// FirstSeen reports whether the event id is new. The second return is
// the error from the cache when the fallback decided the outcome.
func (g *DuplicateGuard) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	key := constants.CacheKeyPrefixEventID + eventID
	ttl := time.Duration(g.cfg.TTLSeconds) * time.Second

	firstSeen, err := g.cache.MarkSeen(ctx, key, ttl)
	if err == nil {
		return firstSeen, nil
	}

	switch g.cfg.OnRedisError {
	case constants.FallbackDeny:
		metrics.FallbackUsageTotal.WithLabelValues("sourcing", "deny_on_error", "cache_error").Inc()
		g.logger.WarnwCtx(ctx, "Dedup cache error, denying event (fallback: deny)",
			"event_id", eventID,
			"error", err,
		)
		return false, err
	default:
		metrics.FallbackUsageTotal.WithLabelValues("sourcing", "allow_on_error", "cache_error").Inc()
		g.logger.WarnwCtx(ctx, "Dedup cache error, allowing event (fallback: allow)",
			"event_id", eventID,
			"error", err,
		)
		return true, err
	}
}
