package workflow

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quantfold/rulebot/internal/backtest"
	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/repository"
	"github.com/quantfold/rulebot/internal/rules"
)

type fakeBacktests struct {
	snapshots    map[string]string
	completedKey string
	failedReason string
}

func newFakeBacktests() *fakeBacktests {
	return &fakeBacktests{snapshots: make(map[string]string)}
}

func (f *fakeBacktests) Create(ctx context.Context, bt models.Backtest) error { return nil }

func (f *fakeBacktests) Get(ctx context.Context, id string) (models.Backtest, error) {
	return models.Backtest{}, repository.ErrBacktestNotFound
}

func (f *fakeBacktests) ClaimPending(ctx context.Context) (models.Backtest, error) {
	return models.Backtest{}, repository.ErrNoPendingWork
}

func (f *fakeBacktests) SetConfigSnapshot(ctx context.Context, id, snapshot string) error {
	f.snapshots[id] = snapshot
	return nil
}

func (f *fakeBacktests) Complete(ctx context.Context, id, reportKey string) error {
	f.completedKey = reportKey
	return nil
}

func (f *fakeBacktests) Fail(ctx context.Context, id, errorMessage string) error {
	f.failedReason = errorMessage
	return nil
}

func (f *fakeBacktests) MarkConfigChanged(ctx context.Context, botID string) error { return nil }

type fakeBots struct {
	bot models.Bot
}

func (f *fakeBots) GetBot(ctx context.Context, id string) (models.Bot, error) {
	if f.bot.ID != id {
		return models.Bot{}, repository.ErrBotNotFound
	}
	return f.bot, nil
}

func (f *fakeBots) ListActiveBots(ctx context.Context) ([]models.Bot, error) {
	return []models.Bot{f.bot}, nil
}

func (f *fakeBots) SaveBot(ctx context.Context, bot models.Bot) error { return nil }

type fakeObjects struct {
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *fakeObjects) GetJSON(ctx context.Context, key string, v interface{}) error {
	return json.Unmarshal(f.objects[key], v)
}

type fakeArchive struct {
	candles []market.Candle
	calls   int
}

func (f *fakeArchive) SaveCandles(ctx context.Context, candles []market.Candle) error { return nil }

func (f *fakeArchive) CandlesBetween(ctx context.Context, symbol, interval string, from, to time.Time) ([]market.Candle, error) {
	f.calls++
	return f.candles, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func windowCandles(start time.Time, n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			Symbol:   "BTCUSDT",
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     100, High: 100, Low: 100, Close: 100, Volume: 1,
		}
	}
	return out
}

func testWorkflow(backtests *fakeBacktests, bots *fakeBots, archive *fakeArchive, objects *fakeObjects) *Workflow {
	engine := backtest.NewEngine(backtest.EngineConfig{}, archive, testLogger())
	return New(
		Config{PollInterval: time.Second, Timeout: time.Minute, MaxWait: 0},
		backtests, bots, engine, objects, nil, testLogger(),
	)
}

func testBot() models.Bot {
	return models.Bot{
		ID:     "bot-1",
		UserID: "user-1",
		Pair:   "BTCUSDT",
		BuyRules: rules.Group{Combinator: rules.CombinatorAnd,
			Children: []rules.Node{rules.Rule{Field: "price", Operator: rules.OpGreater, Value: "999"}}},
	}
}

func testBacktest(start time.Time) models.Backtest {
	return models.Backtest{
		ID:          "bt-1",
		BotID:       "bot-1",
		UserID:      "user-1",
		Status:      models.BacktestStatusRunning,
		WindowStart: start,
		WindowEnd:   start.Add(30 * time.Minute),
	}
}

func TestExecuteCompletesAndWritesReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backtests := newFakeBacktests()
	archive := &fakeArchive{candles: windowCandles(start, 30)}
	objects := newFakeObjects()

	w := testWorkflow(backtests, &fakeBots{bot: testBot()}, archive, objects)
	w.Execute(context.Background(), testBacktest(start))

	if backtests.failedReason != "" {
		t.Fatalf("unexpected failure: %s", backtests.failedReason)
	}
	wantKey := backtest.ReportKey("bt-1")
	if backtests.completedKey != wantKey {
		t.Errorf("completed with key %q, want %q", backtests.completedKey, wantKey)
	}
	if _, ok := objects.objects[wantKey]; !ok {
		t.Error("report blob not written to object storage")
	}
	if backtests.snapshots["bt-1"] == "" {
		t.Error("config snapshot not captured during validation")
	}

	var report backtest.Report
	if err := objects.GetJSON(context.Background(), wantKey, &report); err != nil {
		t.Fatalf("read report back: %v", err)
	}
	if report.BacktestID != "bt-1" || report.BotID != "bot-1" {
		t.Errorf("report ids = %s/%s, want bt-1/bot-1", report.BacktestID, report.BotID)
	}
}

func TestExecuteValidationFailureSkipsEngine(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backtests := newFakeBacktests()
	archive := &fakeArchive{candles: windowCandles(start, 30)}

	// Bot belongs to a different user.
	bot := testBot()
	bot.UserID = "someone-else"

	w := testWorkflow(backtests, &fakeBots{bot: bot}, archive, newFakeObjects())
	w.Execute(context.Background(), testBacktest(start))

	if backtests.failedReason == "" {
		t.Fatal("expected failure for foreign bot")
	}
	if archive.calls != 0 {
		t.Errorf("engine ran %d times after failed validation, want 0", archive.calls)
	}
	if backtests.completedKey != "" {
		t.Error("backtest completed despite failed validation")
	}
}

func TestExecuteRejectsInvertedWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backtests := newFakeBacktests()

	bt := testBacktest(start)
	bt.WindowEnd = bt.WindowStart

	w := testWorkflow(backtests, &fakeBots{bot: testBot()}, &fakeArchive{}, newFakeObjects())
	w.Execute(context.Background(), bt)

	if backtests.failedReason == "" {
		t.Fatal("expected failure for an empty window")
	}
}

func TestExecuteEngineFailureIsTerminal(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backtests := newFakeBacktests()

	// No archived candles: the engine reports a domain error.
	w := testWorkflow(backtests, &fakeBots{bot: testBot()}, &fakeArchive{}, newFakeObjects())
	w.Execute(context.Background(), testBacktest(start))

	if backtests.failedReason == "" {
		t.Fatal("expected failure when the engine cannot load candles")
	}
	if backtests.completedKey != "" {
		t.Error("backtest completed despite engine failure")
	}
}

func TestWaitIsBoundedByMaxWait(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w := testWorkflow(newFakeBacktests(), &fakeBots{bot: testBot()}, &fakeArchive{}, newFakeObjects())
	w.cfg.MaxWait = 10 * time.Millisecond

	var slept time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	// A 30-day window would imply a long delay; MaxWait caps it.
	bt := testBacktest(start)
	bt.WindowEnd = start.Add(30 * 24 * time.Hour)
	if err := w.wait(context.Background(), bt); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if slept != 10*time.Millisecond {
		t.Errorf("slept %v, want capped 10ms", slept)
	}
}
