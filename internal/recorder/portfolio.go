package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantfold/rulebot/internal/metrics"
	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/store"
)

// recordPortfolios folds the batch's per-bot snapshots into one
// portfolio snapshot per owning user. Portfolio failures are isolated
// the same way bot failures are.
func (r *Recorder) recordPortfolios(ctx context.Context, recorded []botResult) {
	byUser := make(map[string][]botResult)
	for _, res := range recorded {
		byUser[res.bot.UserID] = append(byUser[res.bot.UserID], res)
	}

	for userID, results := range byUser {
		if err := r.recordPortfolio(ctx, userID, results); err != nil {
			metrics.RecorderFailures.Inc()
			r.logger.Error("Recording failed for portfolio",
				"user", userID, "error", err)
		}
	}
}

func (r *Recorder) recordPortfolio(ctx context.Context, userID string, results []botResult) error {
	now := r.now().UTC()

	snap := models.PerformanceSnapshot{
		Sub:        userID,
		Timestamp:  now,
		ActiveBots: len(results),
		TTL:        now.Add(r.cfg.SnapshotTTL).Unix(),
	}
	for _, res := range results {
		snap.TotalBuys += res.snapshot.TotalBuys
		snap.TotalSells += res.snapshot.TotalSells
		snap.RealisedPnl += res.snapshot.RealisedPnl
		snap.UnrealisedPnl += res.snapshot.UnrealisedPnl
		snap.NetPnl += res.snapshot.NetPnl
		snap.NetPosition += res.snapshot.NetPosition
	}
	if snap.TotalSells > 0 {
		// Weighted by sell count so the portfolio rate matches the rate
		// over the union of all sells.
		var wins float64
		for _, res := range results {
			wins += res.snapshot.WinRate / 100 * float64(res.snapshot.TotalSells)
		}
		snap.WinRate = wins / float64(snap.TotalSells) * 100
	}

	if prev, ok := r.portfolioAt(ctx, userID, now.Add(-24*time.Hour)); ok {
		snap.Pnl24h = snap.NetPnl - prev.NetPnl
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal portfolio snapshot: %w", err)
	}
	key := store.UserSnapshotKey(userID, now)
	if err := r.store.Put(ctx, key, raw, r.cfg.SnapshotTTL); err != nil {
		return fmt.Errorf("write portfolio snapshot: %w", err)
	}
	metrics.SnapshotsWritten.WithLabelValues("portfolio").Inc()
	return nil
}

// portfolioAt returns the newest portfolio snapshot at or before cutoff,
// if one exists within the retention window.
func (r *Recorder) portfolioAt(ctx context.Context, userID string, cutoff time.Time) (models.PerformanceSnapshot, bool) {
	var best models.PerformanceSnapshot
	var found bool

	opts := store.QueryOptions{Limit: r.cfg.PageSize}
	for {
		page, err := r.store.Query(ctx, store.UserSnapshotPrefix(userID), opts)
		if err != nil {
			r.logger.Warn("Portfolio history lookup failed", "user", userID, "error", err)
			return models.PerformanceSnapshot{}, false
		}
		for _, rec := range page.Records {
			var snap models.PerformanceSnapshot
			if err := json.Unmarshal(rec.Value, &snap); err != nil {
				continue
			}
			if snap.Timestamp.After(cutoff) {
				return best, found
			}
			best, found = snap, true
		}
		if page.Cursor == "" {
			return best, found
		}
		opts.Cursor = page.Cursor
	}
}
