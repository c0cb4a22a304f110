// Package recorder implements the periodic performance recording batch:
// for every active bot, fold the trade tape into P&L metrics and persist
// an immutable snapshot, then aggregate per-user portfolio snapshots.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantfold/rulebot/internal/events"
	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/metrics"
	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/pnl"
	"github.com/quantfold/rulebot/internal/repository"
	"github.com/quantfold/rulebot/internal/store"
)

// Config holds recorder batch settings.
type Config struct {
	// Interval is the delay between batches when driven by Run.
	Interval time.Duration

	// Concurrency bounds in-flight subject lookups (worker pool size).
	Concurrency int

	// SnapshotTTL is the retention period of written snapshots.
	SnapshotTTL time.Duration

	// PageSize is the page size for paginated trade-tape reads.
	PageSize int
}

// Recorder runs the per-tick recording batch.
type Recorder struct {
	cfg       Config
	bots      repository.BotRepository
	store     store.Store
	prices    market.PriceSource
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Recorder. The publisher may be nil when event fan-out is
// disabled.
func New(cfg Config, bots repository.BotRepository, st store.Store,
	prices market.PriceSource, publisher events.Publisher, logger *slog.Logger) *Recorder {

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 25
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Recorder{
		cfg:       cfg,
		bots:      bots,
		store:     st,
		prices:    prices,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one batch per interval until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info("Starting recorder loop",
		"interval", r.cfg.Interval, "concurrency", r.cfg.Concurrency)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Recorder loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunBatch(ctx); err != nil {
				r.logger.Error("Recorder batch failed", "error", err)
			}
		}
	}
}

// botResult is one subject's outcome within a batch.
type botResult struct {
	bot      models.Bot
	snapshot models.PerformanceSnapshot
	err      error
}

// RunBatch records every active bot once, then writes portfolio
// snapshots. Per-subject failures are isolated: they are logged and
// counted, and the rest of the batch still runs. Only a failure to list
// the subjects aborts the batch.
func (r *Recorder) RunBatch(ctx context.Context) error {
	started := r.now()
	defer func() {
		metrics.RecorderBatchSeconds.Observe(time.Since(started).Seconds())
	}()

	bots, err := r.bots.ListActiveBots(ctx)
	if err != nil {
		return fmt.Errorf("list active bots: %w", err)
	}
	if len(bots) == 0 {
		return nil
	}

	tasks := make(chan models.Bot)
	results := make(chan botResult, len(bots))

	var wg sync.WaitGroup
	workers := r.cfg.Concurrency
	if workers > len(bots) {
		workers = len(bots)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bot := range tasks {
				snap, err := r.recordBot(ctx, bot)
				results <- botResult{bot: bot, snapshot: snap, err: err}
			}
		}()
	}

	for _, bot := range bots {
		tasks <- bot
	}
	close(tasks)
	wg.Wait()
	close(results)

	var recorded []botResult
	var failures int
	for res := range results {
		if res.err != nil {
			failures++
			metrics.RecorderFailures.Inc()
			r.logger.Error("Recording failed for bot",
				"bot", res.bot.ID, "error", res.err)
			continue
		}
		recorded = append(recorded, res)
	}

	r.recordPortfolios(ctx, recorded)

	r.logger.Info("Recorder batch complete",
		"bots", len(bots), "failures", failures, "took", time.Since(started))
	return nil
}

// recordBot loads one bot's tape and price, computes the summary, and
// persists the snapshot.
func (r *Recorder) recordBot(ctx context.Context, bot models.Bot) (models.PerformanceSnapshot, error) {
	trades, err := r.loadTrades(ctx, bot.ID)
	if err != nil {
		return models.PerformanceSnapshot{}, fmt.Errorf("load trades: %w", err)
	}

	price, err := r.prices.Price(ctx, bot.Pair)
	if err != nil {
		return models.PerformanceSnapshot{}, fmt.Errorf("resolve price for %s: %w", bot.Pair, err)
	}

	summary := pnl.Compute(trades, price)
	now := r.now().UTC()

	snap := models.PerformanceSnapshot{
		BotID:         bot.ID,
		Timestamp:     now,
		TotalBuys:     summary.TotalBuys,
		TotalSells:    summary.TotalSells,
		RealisedPnl:   summary.RealisedPnl,
		UnrealisedPnl: summary.UnrealisedPnl,
		NetPnl:        summary.NetPnl,
		NetPosition:   summary.NetPosition,
		WinRate:       summary.WinRate,
		CurrentPrice:  price,
		TTL:           now.Add(r.cfg.SnapshotTTL).Unix(),
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return models.PerformanceSnapshot{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	key := store.BotSnapshotKey(bot.ID, now)
	if err := r.store.Put(ctx, key, raw, r.cfg.SnapshotTTL); err != nil {
		return models.PerformanceSnapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	metrics.SnapshotsWritten.WithLabelValues("bot").Inc()

	if r.publisher != nil {
		if err := r.publisher.PublishEvent(ctx, events.NewSnapshotRecorded(bot.ID, summary.NetPnl)); err != nil {
			r.logger.Warn("Snapshot event publish failed", "bot", bot.ID, "error", err)
		}
	}
	return snap, nil
}

// loadTrades reads a bot's full trade tape, following continuation
// cursors until the range is exhausted.
func (r *Recorder) loadTrades(ctx context.Context, botID string) ([]models.Trade, error) {
	var trades []models.Trade

	opts := store.QueryOptions{Limit: r.cfg.PageSize}
	for {
		page, err := r.store.Query(ctx, store.TradePrefix(botID), opts)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			var t models.Trade
			if err := json.Unmarshal(rec.Value, &t); err != nil {
				return nil, fmt.Errorf("decode trade %s: %w", rec.Key, err)
			}
			trades = append(trades, t)
		}
		if page.Cursor == "" {
			return trades, nil
		}
		opts.Cursor = page.Cursor
	}
}
