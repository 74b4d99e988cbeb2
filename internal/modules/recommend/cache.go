// README: Redis cache for optimal-time lookups.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"offpeak/internal/window"
)

// Optimal-time answers only move when the clock minute does, so a short
// TTL absorbs bursts without serving stale windows.
const optimalCacheTTL = 60 * time.Second

type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func optimalKey(region string, windowHours int, from time.Time) string {
	return fmt.Sprintf("recommend:optimal:%s:%d:%s", region, windowHours, from.Format("200601021504"))
}

// GetOptimal returns the cached search result for key, or (nil, nil) on a
// miss.
func (c *Cache) GetOptimal(ctx context.Context, key string) (*window.Result, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res window.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Cache) SetOptimal(ctx context.Context, key string, res *window.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, optimalCacheTTL).Err()
}
