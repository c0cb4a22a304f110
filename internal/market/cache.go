package market

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// PriceCache holds last-known prices with an explicit TTL. It replaces any
// process-wide mutable price state: the cache is owned by the component
// that created it, and a stale entry simply disappears after expiry.
type PriceCache struct {
	ttl     time.Duration
	entries *cache.Cache
}

// NewPriceCache creates a price cache whose entries expire after ttl.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		entries: cache.New(ttl, 2*ttl),
	}
}

// Set records the latest price for a symbol.
func (pc *PriceCache) Set(symbol string, price float64) {
	pc.entries.Set(symbol, price, cache.DefaultExpiration)
}

// Get returns the cached price for a symbol, or false if the entry is
// missing or expired.
func (pc *PriceCache) Get(symbol string) (float64, bool) {
	v, found := pc.entries.Get(symbol)
	if !found {
		return 0, false
	}
	price, ok := v.(float64)
	return price, ok
}
