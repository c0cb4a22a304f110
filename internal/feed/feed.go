// Package feed runs the live market loop: poll candles and ticker,
// compute the indicator snapshot, publish it, and archive new candles.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/rulebot/internal/events"
	"github.com/quantfold/rulebot/internal/history"
	"github.com/quantfold/rulebot/internal/indicator"
	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/metrics"
	"github.com/quantfold/rulebot/internal/retry"
)

// Config holds the feed loop settings.
type Config struct {
	// Symbols is the list of pairs to track.
	Symbols []string

	// Interval is the candle interval requested from the exchange.
	Interval string

	// WindowSize is the rolling window length per symbol.
	WindowSize int

	// PollInterval is the delay between ticks.
	PollInterval time.Duration
}

// Feed polls market data per symbol and fans indicator snapshots out to
// subscribers. One Feed owns its windows and price cache; it is driven by
// a single goroutine.
type Feed struct {
	cfg       Config
	client    market.Client
	cache     *market.PriceCache
	archive   history.Archive
	publisher events.Publisher
	retryer   *retry.Retryer
	logger    *slog.Logger

	windows  map[string]*market.Window
	archived map[string]time.Time
}

// New creates a Feed. The archive may be nil when candle archival is
// disabled.
func New(cfg Config, client market.Client, cache *market.PriceCache, archive history.Archive,
	publisher events.Publisher, retryer *retry.Retryer, logger *slog.Logger) *Feed {

	windows := make(map[string]*market.Window, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		windows[s] = market.NewWindow(cfg.WindowSize)
	}

	return &Feed{
		cfg:       cfg,
		client:    client,
		cache:     cache,
		archive:   archive,
		publisher: publisher,
		retryer:   retryer,
		logger:    logger,
		windows:   windows,
		archived:  make(map[string]time.Time, len(cfg.Symbols)),
	}
}

// Run polls all symbols once per interval until ctx is cancelled. A
// failed symbol tick is logged and retried on the next interval; it does
// not stop the loop.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("Starting feed loop",
		"symbols", len(f.cfg.Symbols), "interval", f.cfg.Interval, "poll", f.cfg.PollInterval)

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	f.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Feed loop stopped")
			return ctx.Err()
		case <-ticker.C:
			f.pollAll(ctx)
		}
	}
}

func (f *Feed) pollAll(ctx context.Context) {
	for _, symbol := range f.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := f.Tick(ctx, symbol); err != nil {
			metrics.FeedTicks.WithLabelValues(symbol, "error").Inc()
			f.logger.Error("Feed tick failed", "symbol", symbol, "error", err)
			continue
		}
		metrics.FeedTicks.WithLabelValues(symbol, "ok").Inc()
	}
}

// Tick processes one symbol: fetch, compute, publish, archive. An
// upstream market-data failure fails the whole tick; there is no fallback
// to stale indicators on the live path.
func (f *Feed) Tick(ctx context.Context, symbol string) error {
	var candles []market.Candle
	err := f.retryer.Execute(ctx, func() error {
		var err error
		candles, err = f.client.Candles(ctx, symbol, f.cfg.Interval, f.cfg.WindowSize)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}

	var ticker market.Ticker24h
	err = f.retryer.Execute(ctx, func() error {
		var err error
		ticker, err = f.client.Ticker(ctx, symbol)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch ticker: %w", err)
	}

	window := f.windows[symbol]
	window.Replace(candles)

	snap := indicator.Calculate(window.Candles(), ticker)

	f.cache.Set(symbol, ticker.LastPrice)
	metrics.LastPrice.WithLabelValues(symbol).Set(ticker.LastPrice)

	// Best effort: a failed publish must not fail the tick.
	if err := f.publisher.PublishIndicatorUpdate(ctx, symbol, snap); err != nil {
		f.logger.Warn("Indicator publish failed", "symbol", symbol, "error", err)
	}

	if f.archive != nil {
		if err := f.archiveNew(ctx, symbol, candles); err != nil {
			f.logger.Warn("Candle archive failed", "symbol", symbol, "error", err)
		}
	}
	return nil
}

// archiveNew persists candles not yet archived for the symbol. The last
// candle in a batch is usually still open, so it is held back until the
// next poll sees it closed.
func (f *Feed) archiveNew(ctx context.Context, symbol string, candles []market.Candle) error {
	if len(candles) < 2 {
		return nil
	}
	closed := candles[:len(candles)-1]

	since := f.archived[symbol]
	var fresh []market.Candle
	for _, c := range closed {
		if c.OpenTime.After(since) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := f.archive.SaveCandles(ctx, fresh); err != nil {
		return err
	}
	f.archived[symbol] = fresh[len(fresh)-1].OpenTime
	return nil
}
