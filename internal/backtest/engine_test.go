package backtest

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/rules"
)

type fakeArchive struct {
	candles []market.Candle
	err     error
}

func (f *fakeArchive) SaveCandles(ctx context.Context, candles []market.Candle) error {
	return nil
}

func (f *fakeArchive) CandlesBetween(ctx context.Context, symbol, interval string, from, to time.Time) ([]market.Candle, error) {
	return f.candles, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func priceRule(operator, value string) rules.Group {
	return rules.Group{
		Combinator: rules.CombinatorAnd,
		Children:   []rules.Node{rules.Rule{Field: "price", Operator: operator, Value: value}},
	}
}

// minuteCandles builds one candle per minute with the given closes,
// starting at start.
func minuteCandles(start time.Time, closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Symbol:   "BTCUSDT",
			Interval: "1m",
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			Volume:   1,
		}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRunEmptyWindowIsError(t *testing.T) {
	engine := NewEngine(EngineConfig{}, &fakeArchive{}, testLogger())

	bot := models.Bot{ID: "bot-1", Pair: "BTCUSDT"}
	bt := models.Backtest{ID: "bt-1", BotID: "bot-1",
		WindowStart: time.Now().Add(-time.Hour), WindowEnd: time.Now()}

	if _, err := engine.Run(context.Background(), bot, bt); err == nil {
		t.Fatal("expected error for empty historical window")
	}
}

func TestRunReplaysRulesOverWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 100 + float64(i) // 100 .. 120
	}
	archive := &fakeArchive{candles: minuteCandles(start, closes...)}

	engine := NewEngine(EngineConfig{Interval: "1m"}, archive, testLogger())

	bot := models.Bot{
		ID:        "bot-1",
		Pair:      "BTCUSDT",
		BuyRules:  priceRule(rules.OpLessEqual, "105"),
		SellRules: priceRule(rules.OpGreaterEqual, "115"),
	}
	bt := models.Backtest{
		ID:          "bt-1",
		BotID:       "bot-1",
		WindowStart: start,
		WindowEnd:   start.Add(20 * time.Minute),
		SizingMode:  models.SizingDefault,
	}

	report, err := engine.Run(context.Background(), bot, bt)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Buys at 100..105, then sells from 115 up until the position closes.
	if report.Summary.TotalBuys != 6 {
		t.Errorf("TotalBuys = %d, want 6", report.Summary.TotalBuys)
	}
	if report.Summary.TotalSells != 6 {
		t.Errorf("TotalSells = %d, want 6", report.Summary.TotalSells)
	}
	if report.Summary.TotalTrades != 12 {
		t.Errorf("TotalTrades = %d, want 12", report.Summary.TotalTrades)
	}

	// avgBuyCost = 102.5; realised = sum(115..120) - 6*102.5 = 90.
	if !almostEqual(report.Summary.NetPnl, 90) {
		t.Errorf("NetPnl = %v, want 90", report.Summary.NetPnl)
	}
	if report.Summary.WinRate != 100 {
		t.Errorf("WinRate = %v, want 100", report.Summary.WinRate)
	}
	if !almostEqual(report.Summary.LargestGain, 17.5) {
		t.Errorf("LargestGain = %v, want 17.5", report.Summary.LargestGain)
	}
	if report.Summary.LargestLoss != 0 {
		t.Errorf("LargestLoss = %v, want 0", report.Summary.LargestLoss)
	}

	// FIFO matching: buys at minutes 0..5 close out at minutes 15..20.
	if !almostEqual(report.Summary.AvgHoldTimeMinutes, 15) {
		t.Errorf("AvgHoldTimeMinutes = %v, want 15", report.Summary.AvgHoldTimeMinutes)
	}

	if len(report.HourlyBuckets) != 1 {
		t.Fatalf("buckets = %d, want 1 for a 20-minute window", len(report.HourlyBuckets))
	}
	bucket := report.HourlyBuckets[0]
	if !bucket.HourStart.Equal(start) {
		t.Errorf("HourStart = %v, want %v", bucket.HourStart, start)
	}
	if bucket.Buys != 6 || bucket.Sells != 6 {
		t.Errorf("bucket counts = %d/%d, want 6/6", bucket.Buys, bucket.Sells)
	}
	if !almostEqual(bucket.RealisedPnl, 90) {
		t.Errorf("bucket RealisedPnl = %v, want 90", bucket.RealisedPnl)
	}
	if bucket.OpenPrice != 100 || bucket.ClosePrice != 120 {
		t.Errorf("bucket prices = %v/%v, want 100/120", bucket.OpenPrice, bucket.ClosePrice)
	}
}

func TestRunSellWithoutPositionIsSkipped(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	archive := &fakeArchive{candles: minuteCandles(start, 200, 201, 202)}

	engine := NewEngine(EngineConfig{}, archive, testLogger())

	bot := models.Bot{
		ID:        "bot-1",
		Pair:      "BTCUSDT",
		BuyRules:  priceRule(rules.OpLess, "100"), // never matches
		SellRules: priceRule(rules.OpGreater, "0"),
	}
	bt := models.Backtest{ID: "bt-1", BotID: "bot-1",
		WindowStart: start, WindowEnd: start.Add(2 * time.Minute)}

	report, err := engine.Run(context.Background(), bot, bt)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary.TotalTrades != 0 {
		t.Errorf("TotalTrades = %d, want 0 when holding nothing", report.Summary.TotalTrades)
	}
	if report.Summary.NetPnl != 0 {
		t.Errorf("NetPnl = %v, want 0", report.Summary.NetPnl)
	}
}

func TestRunSpansMultipleHourBuckets(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	closes := make([]float64, 61)
	for i := range closes {
		closes[i] = 100
	}
	archive := &fakeArchive{candles: minuteCandles(start, closes...)}

	engine := NewEngine(EngineConfig{}, archive, testLogger())

	bot := models.Bot{ID: "bot-1", Pair: "BTCUSDT"} // empty rules never match
	bt := models.Backtest{ID: "bt-1", BotID: "bot-1",
		WindowStart: start, WindowEnd: start.Add(time.Hour)}

	report, err := engine.Run(context.Background(), bot, bt)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.HourlyBuckets) != 2 {
		t.Fatalf("buckets = %d, want 2 for a window crossing one hour boundary", len(report.HourlyBuckets))
	}
	if !report.HourlyBuckets[0].HourStart.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("first bucket = %v, want 12:00", report.HourlyBuckets[0].HourStart)
	}
	if !report.HourlyBuckets[1].HourStart.Equal(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("second bucket = %v, want 13:00", report.HourlyBuckets[1].HourStart)
	}
	if report.Summary.TotalTrades != 0 {
		t.Errorf("empty rule groups produced %d trades, want 0", report.Summary.TotalTrades)
	}
}

func TestNotionalSizing(t *testing.T) {
	engine := NewEngine(EngineConfig{DefaultNotional: 100}, &fakeArchive{}, testLogger())

	configured := models.Bot{SizingMode: models.SizingConfigured, SizeAmount: 250}
	if got := engine.Notional(configured); got != 250 {
		t.Errorf("configured notional = %v, want 250", got)
	}

	fallback := models.Bot{SizingMode: models.SizingDefault}
	if got := engine.Notional(fallback); got != 100 {
		t.Errorf("default notional = %v, want 100", got)
	}

	zeroConfigured := models.Bot{SizingMode: models.SizingConfigured}
	if got := engine.Notional(zeroConfigured); got != 100 {
		t.Errorf("zero configured notional = %v, want default 100", got)
	}
}
