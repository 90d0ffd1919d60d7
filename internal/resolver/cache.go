package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"planguard/internal/constants"
	"planguard/internal/logger"
	"planguard/internal/rulepack"
	"planguard/pkg/metrics"
)

// Cache stores resolved packs in redis keyed by the full resolution query.
// Entries are TTL-bounded and dropped wholesale on any pack mutation; a
// cache failure degrades to a live resolution, never an error.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewCache(client *redis.Client, ttlSeconds int, log logger.Logger) *Cache {
	if ttlSeconds <= 0 {
		ttlSeconds = constants.DefaultResolverCacheTTLSeconds
	}
	return &Cache{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
		log:    log,
	}
}

// cached wraps the pack so "no pack applies" is itself cacheable.
type cachedResolution struct {
	Pack *rulepack.RulePack `json:"pack"`
}

func cacheKey(school, district, state, planType string) string {
	return constants.CacheKeyPrefixResolvedPack + strings.Join([]string{school, district, state, planType}, ":")
}

func (c *Cache) Get(ctx context.Context, school, district, state, planType string) (*rulepack.RulePack, bool) {
	data, err := c.client.Get(ctx, cacheKey(school, district, state, planType)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ResolverCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.ResolverCacheTotal.WithLabelValues("error").Inc()
		c.log.WarnwCtx(ctx, "Resolver cache read failed", "error", err)
		return nil, false
	}

	var cached cachedResolution
	if err := json.Unmarshal(data, &cached); err != nil {
		metrics.ResolverCacheTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	metrics.ResolverCacheTotal.WithLabelValues("hit").Inc()
	return cached.Pack, true
}

func (c *Cache) Set(ctx context.Context, school, district, state, planType string, pack *rulepack.RulePack) {
	data, err := json.Marshal(cachedResolution{Pack: pack})
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(school, district, state, planType), data, c.ttl).Err(); err != nil {
		c.log.WarnwCtx(ctx, "Resolver cache write failed", "error", err)
	}
}

// InvalidateResolved drops every cached resolution. Pack mutations change
// which pack a scope triple resolves to in ways a single key cannot
// capture, so the whole namespace goes.
func (c *Cache) InvalidateResolved(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, constants.CacheKeyPrefixResolvedPack+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.WarnwCtx(ctx, "Resolver cache scan failed", "error", fmt.Errorf("redis scan failed: %w", err))
		return
	}

	if len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.WarnwCtx(ctx, "Resolver cache invalidation failed", "error", err)
	}
}
