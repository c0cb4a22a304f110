package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
)

// Client fetches candles and ticker snapshots from an upstream market-data
// provider. Implementations must be safe for concurrent use.
type Client interface {
	// Candles returns up to limit most-recent candles for symbol at the
	// given interval, oldest first.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// Ticker returns the most recent 24h ticker snapshot for symbol.
	Ticker(ctx context.Context, symbol string) (Ticker24h, error)
}

// binanceClient implements Client against the Binance spot REST API with a
// shared rate limiter in front of every call.
type binanceClient struct {
	api     *binance.Client
	limiter *rate.Limiter
}

// NewBinanceClient creates a rate-limited Binance market data client.
// Public market endpoints work with empty credentials.
func NewBinanceClient(apiKey, apiSecret string, requestsPerSecond float64) Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &binanceClient{
		api:     binance.NewClient(apiKey, apiSecret),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 10),
	}
}

func (c *binanceClient) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines for %s: %w", symbol, err)
	}

	out := make([]Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		})
	}
	return out, nil
}

func (c *binanceClient) Ticker(ctx context.Context, symbol string) (Ticker24h, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Ticker24h{}, err
	}

	stats, err := c.api.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return Ticker24h{}, fmt.Errorf("fetch 24h ticker for %s: %w", symbol, err)
	}
	if len(stats) == 0 {
		return Ticker24h{}, fmt.Errorf("no 24h ticker data for %s", symbol)
	}

	s := stats[0]
	return Ticker24h{
		Symbol:         symbol,
		LastPrice:      parseFloat(s.LastPrice),
		Volume:         parseFloat(s.Volume),
		PriceChangePct: parseFloat(s.PriceChangePercent),
	}, nil
}

// parseFloat converts Binance string-encoded numbers; malformed values
// become 0 rather than failing the whole candle batch.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
