package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"betboard/models"

	"github.com/redis/go-redis/v9"
)

// RedisOddsCache stores suggested coefficients per event as JSON with a TTL
type RedisOddsCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisOddsCache creates an odds cache on top of a redis client
func NewRedisOddsCache(rdb redis.Cmdable, ttl time.Duration) *RedisOddsCache {
	return &RedisOddsCache{rdb: rdb, ttl: ttl}
}

func oddsKey(eventID int64) string {
	return "odds:event:" + strconv.FormatInt(eventID, 10)
}

// Get returns the cached suggestions for an event. A miss is not an error.
func (c *RedisOddsCache) Get(ctx context.Context, eventID int64) ([]models.SuggestedCoefficient, bool, error) {
	b, err := c.rdb.Get(ctx, oddsKey(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read odds for event %d: %w", eventID, err)
	}

	var suggestions []models.SuggestedCoefficient
	if err := json.Unmarshal(b, &suggestions); err != nil {
		return nil, false, fmt.Errorf("failed to decode odds for event %d: %w", eventID, err)
	}
	return suggestions, true, nil
}

// Set stores suggestions for an event
func (c *RedisOddsCache) Set(ctx context.Context, eventID int64, suggestions []models.SuggestedCoefficient) error {
	b, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode odds for event %d: %w", eventID, err)
	}
	if err := c.rdb.Set(ctx, oddsKey(eventID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write odds for event %d: %w", eventID, err)
	}
	return nil
}

// Invalidate drops the cached suggestions for an event
func (c *RedisOddsCache) Invalidate(ctx context.Context, eventID int64) error {
	if err := c.rdb.Del(ctx, oddsKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate odds for event %d: %w", eventID, err)
	}
	return nil
}
