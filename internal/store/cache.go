package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Pusher91/fieldbutton/internal/domain"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 24 * time.Hour
)

// RegistrationCache remembers successful registrations for a bounded time.
// Keys are hashed so raw tokens are not kept in memory.
type RegistrationCache struct {
	lru *expirable.LRU[string, time.Time]
}

func NewRegistrationCache(size int, ttl time.Duration) *RegistrationCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RegistrationCache{lru: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

func cacheKey(d, token string) string {
	sum := sha256.Sum256([]byte(domain.CacheKey(d, token)))
	return hex.EncodeToString(sum[:])
}

func (c *RegistrationCache) Contains(d, token string) bool {
	if c == nil {
		return false
	}
	_, ok := c.lru.Get(cacheKey(d, token))
	return ok
}

func (c *RegistrationCache) Remember(d, token string) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(d, token), time.Now().UTC())
}
