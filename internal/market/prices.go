package market

import "context"

// PriceSource resolves the current price of a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// CachedPrices serves prices from the TTL cache and falls back to a
// ticker fetch on a miss, refreshing the cache on the way out.
type CachedPrices struct {
	cache  *PriceCache
	client Client
}

// NewCachedPrices combines a price cache with a REST client.
func NewCachedPrices(cache *PriceCache, client Client) *CachedPrices {
	return &CachedPrices{cache: cache, client: client}
}

// Price returns the cached price when fresh, otherwise fetches the 24h
// ticker. A fetch failure with a cold cache is an error: stale data is
// not silently substituted.
func (cp *CachedPrices) Price(ctx context.Context, symbol string) (float64, error) {
	if price, ok := cp.cache.Get(symbol); ok {
		return price, nil
	}

	ticker, err := cp.client.Ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	cp.cache.Set(symbol, ticker.LastPrice)
	return ticker.LastPrice, nil
}
