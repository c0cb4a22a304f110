// Package metrics registers the Prometheus collectors shared by the
// platform binaries and serves them over HTTP.
//
// Exposed series:
//   - rulebot_feed_ticks_total{symbol,result}     – feed ticks by outcome (ok|error)
//   - rulebot_last_price{symbol}                  – last ticker price seen by the feed
//   - rulebot_snapshots_written_total{level}      – snapshots written (bot|portfolio)
//   - rulebot_recorder_failures_total             – per-subject recorder failures
//   - rulebot_recorder_batch_seconds              – recorder batch duration histogram
//   - rulebot_backtests_total{result}             – backtest workflow outcomes
//   - rulebot_backtest_duration_seconds           – backtest engine run duration
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulebot_feed_ticks_total",
			Help: "Feed ticks by symbol and outcome",
		},
		[]string{"symbol", "result"},
	)

	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rulebot_last_price",
			Help: "Last ticker price seen by the feed",
		},
		[]string{"symbol"},
	)

	SnapshotsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulebot_snapshots_written_total",
			Help: "Performance snapshots written",
		},
		[]string{"level"}, // bot|portfolio
	)

	RecorderFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rulebot_recorder_failures_total",
			Help: "Per-subject recorder failures (batch continues)",
		},
	)

	RecorderBatchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rulebot_recorder_batch_seconds",
			Help:    "Recorder batch duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	Backtests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulebot_backtests_total",
			Help: "Backtest workflow outcomes",
		},
		[]string{"result"}, // completed|failed
	)

	BacktestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rulebot_backtest_duration_seconds",
			Help:    "Backtest engine run duration",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(
		FeedTicks,
		LastPrice,
		SnapshotsWritten,
		RecorderFailures,
		RecorderBatchSeconds,
		Backtests,
		BacktestDuration,
	)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server stopped", "error", err)
	}
}
