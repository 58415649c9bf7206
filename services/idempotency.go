// services/idempotency.go
package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyCache is the redis fast-path for replayed award results. The
// bonus collection's unique idempotency-key index stays authoritative; this
// cache only spares the database a lookup on hot retries. A nil cache (redis
// unavailable) degrades to misses.
type IdempotencyCache struct {
	rdb *redis.Client
}

func NewIdempotencyCache(rdb *redis.Client) *IdempotencyCache {
	if rdb == nil {
		return nil
	}
	return &IdempotencyCache{rdb: rdb}
}

func (c *IdempotencyCache) key(k string) string {
	return "bonus:idem:" + k
}

// Get returns the cached result for an idempotency key.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*models.BonusResult, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.key(key)).Result()
	if err != nil {
		return nil, false
	}
	var result models.BonusResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Put stores an applied result. Best-effort: cache failures are logged only.
func (c *IdempotencyCache) Put(ctx context.Context, key string, result *models.BonusResult) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), raw, idempotencyTTL).Err(); err != nil {
		log.Printf("Failed to cache idempotency result for %s: %v", key, err)
	}
}
