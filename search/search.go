package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pantree/logger"
	"pantree/models"
)

// Provider looks foods up in an external database. Returned foods carry
// fresh random IDs and are not persisted.
type Provider interface {
	Search(ctx context.Context, query string, numResults, page uint) ([]models.Food, error)
}

// Cache is the part of the redis client Cached needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached memoises a provider's results in redis. Cache failures fall through
// to the provider.
type Cached struct {
	Provider Provider
	Cache    Cache
	TTL      time.Duration
}

func cacheKey(query string, numResults, page uint) string {
	return fmt.Sprintf("pantree:search:foods:%d:%d:%s", numResults, page, query)
}

func (c *Cached) Search(ctx context.Context, query string, numResults, page uint) ([]models.Food, error) {
	key := cacheKey(query, numResults, page)

	raw, err := c.Cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var foods []models.Food
		if jerr := json.Unmarshal(raw, &foods); jerr == nil {
			// cached entries must not hand out the same IDs twice
			for i := range foods {
				foods[i].ID = uuid.New()
			}
			return foods, nil
		} else {
			logger.Warn("discarding corrupt search cache entry", zap.String("key", key), zap.Error(jerr))
		}
	case !errors.Is(err, redis.Nil):
		logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
	}

	foods, err := c.Provider.Search(ctx, query, numResults, page)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(foods); err == nil {
		if err := c.Cache.Set(ctx, key, data, c.TTL).Err(); err != nil {
			logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return foods, nil
}
