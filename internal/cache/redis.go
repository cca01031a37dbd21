// internal/cache/redis.go

// Package cache provides an optional Redis-backed cache for search provider
// responses. Identical queries inside the TTL window skip the network; cache
// failures are degraded to misses, never surfaced to the pipeline.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"deepsearch/internal/common/logger"
	"deepsearch/internal/common/metrics"
	"deepsearch/internal/models"
)

type Config struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// SearchCache stores search responses keyed by the full request shape.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewSearchCache(cfg Config, log logger.Logger) *SearchCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &SearchCache{
		client: rdb,
		ttl:    cfg.TTL,
		logger: log.With(map[string]interface{}{"component": "search-cache"}),
	}
}

// NewSearchCacheWithClient wraps an existing Redis client (used by tests).
func NewSearchCacheWithClient(client *redis.Client, ttl time.Duration, log logger.Logger) *SearchCache {
	return &SearchCache{
		client: client,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "search-cache"}),
	}
}

// Ping tests the Redis connection.
func (c *SearchCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *SearchCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Get returns the cached response for req, or (nil, false) on miss or any
// cache failure.
func (c *SearchCache) Get(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, bool) {
	raw, err := c.client.Get(ctx, Key(req)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", map[string]interface{}{"error": err.Error()})
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}

	var resp models.SearchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("hit").Inc()
	return &resp, true
}

// Set stores the response for req under the configured TTL. Failures are
// logged and dropped.
func (c *SearchCache) Set(ctx context.Context, req models.SearchRequest, resp *models.SearchResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, Key(req), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

// Key derives a stable cache key from the full request shape, so the same
// query at a different depth or domain filter is a different entry.
func Key(req models.SearchRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s",
		req.Query, req.Depth, req.MaxResults,
		strings.Join(req.IncludeDomains, ","),
		strings.Join(req.ExcludeDomains, ","),
	)
	return "deepsearch:search:" + hex.EncodeToString(h.Sum(nil))[:32]
}
