package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// GeneralCache is a local in-process cache with TTL support. The controller
// uses it in front of the data store for hot keys such as saved locales.
type GeneralCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewGeneralCache(maxCost int64, ttl time.Duration) (*GeneralCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e7,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &GeneralCache{cache: cache, ttl: ttl}, nil
}

func (c *GeneralCache) Set(key string, value interface{}) bool {
	return c.SetWithTTL(key, value, c.ttl)
}

func (c *GeneralCache) SetWithTTL(key string, value interface{}, ttl time.Duration) bool {
	return c.cache.SetWithTTL(key, value, 1, ttl)
}

func (c *GeneralCache) Get(key string) (interface{}, bool) {
	return c.cache.Get(key)
}

func (c *GeneralCache) GetString(key string) (string, bool) {
	value, ok := c.cache.Get(key)
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

func (c *GeneralCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *GeneralCache) Close() {
	c.cache.Close()
}
