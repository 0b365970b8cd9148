package debrid

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"

	"github.com/amaumene/gostremiodebrid/internal/constants"
)

// StatusCache memoizes gateway statuses per info hash for a short window.
// It is an optimization only and never authoritative; entries leave by
// expiry alone.
type StatusCache struct {
	cache *ttlcache.Cache[string, string]
}

func NewStatusCache() *StatusCache {
	return newStatusCache(constants.StatusCacheTTL)
}

func newStatusCache(ttl time.Duration) *StatusCache {
	return &StatusCache{
		cache: ttlcache.New(ttlcache.Options[string, string]{}.SetDefaultTTL(ttl)),
	}
}

func (c *StatusCache) Set(hash, status string) {
	if hash == "" {
		return
	}
	c.cache.Set(hash, status, ttlcache.DefaultTTL)
}

func (c *StatusCache) Get(hash string) (string, bool) {
	return c.cache.Get(hash)
}
