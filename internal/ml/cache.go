package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smartq/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL keeps date-keyed predictions fresh enough for a queue
// that moves minute to minute.
const DefaultCacheTTL = 5 * time.Minute

// Cache holds recent prediction responses in Redis. Predictions for
// queue-length and peak-hours depend only on the feature tuple, so within
// a short window identical requests can skip the remote call entirely.
// Cache failures are logged and treated as misses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(capability Capability, features models.FeatureRecord) string {
	return fmt.Sprintf("ml:%s:%s:%d:%d:%d:%d",
		capability, features.Service, features.DayOfWeek, features.HourOfDay,
		features.Month, features.DayOfMonth)
}

func (c *Cache) Get(ctx context.Context, capability Capability, features models.FeatureRecord) (map[string]any, bool) {
	val, err := c.client.Get(ctx, cacheKey(capability, features)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("prediction cache read failed")
		return nil, false
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		c.logger.Warn().Err(err).Msg("prediction cache entry corrupt")
		return nil, false
	}
	return result, true
}

func (c *Cache) Set(ctx context.Context, capability Capability, features models.FeatureRecord, result map[string]any) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal prediction for cache")
		return
	}
	if err := c.client.Set(ctx, cacheKey(capability, features), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("prediction cache write failed")
	}
}
