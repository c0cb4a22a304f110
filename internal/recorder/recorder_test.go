package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/repository"
	"github.com/quantfold/rulebot/internal/store"
)

type fakeBots struct {
	active []models.Bot
	err    error
}

func (f *fakeBots) GetBot(ctx context.Context, id string) (models.Bot, error) {
	for _, b := range f.active {
		if b.ID == id {
			return b, nil
		}
	}
	return models.Bot{}, repository.ErrBotNotFound
}

func (f *fakeBots) ListActiveBots(ctx context.Context) ([]models.Bot, error) {
	return f.active, f.err
}

func (f *fakeBots) SaveBot(ctx context.Context, bot models.Bot) error { return nil }

// fakeStore is an in-memory Store with lexicographic range queries and
// optional per-key write failures.
type fakeStore struct {
	mu      sync.Mutex
	records map[string][]byte
	failPut map[string]bool // keyed by key prefix
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string][]byte),
		failPut: make(map[string]bool),
	}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.records[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) Query(ctx context.Context, prefix string, opts store.QueryOptions) (store.QueryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if opts.Descending {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	var page store.QueryPage
	for _, k := range keys {
		if opts.Cursor != "" {
			if !opts.Descending && k <= opts.Cursor {
				continue
			}
			if opts.Descending && k >= opts.Cursor {
				continue
			}
		}
		page.Records = append(page.Records, store.Record{Key: k, Value: f.records[k]})
		if len(page.Records) == limit {
			page.Cursor = k
			break
		}
	}
	return page, nil
}

func (f *fakeStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	for prefix := range f.failPut {
		if strings.HasPrefix(key, prefix) {
			return errors.New("store unavailable")
		}
	}
	f.records[key] = value
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, key)
	return nil
}

func (f *fakeStore) BatchDelete(ctx context.Context, keys []string) error {
	for _, k := range keys {
		_ = f.Delete(ctx, k)
	}
	return nil
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeStore) keysWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) Price(ctx context.Context, symbol string) (float64, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("no price for " + symbol)
	}
	return p, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeBot(id, userID string) models.Bot {
	return models.Bot{ID: id, UserID: userID, Pair: "BTCUSDT", Status: models.BotStatusActive}
}

func seedTrade(t *testing.T, st *fakeStore, botID string, ts time.Time, action string, price float64) {
	t.Helper()
	trade := models.Trade{BotID: botID, Timestamp: ts, Action: action, Price: price, Pair: "BTCUSDT"}
	raw, err := json.Marshal(trade)
	if err != nil {
		t.Fatal(err)
	}
	st.records[store.TradeKey(botID, ts)] = raw
}

func TestRunBatchNoActiveBots(t *testing.T) {
	st := newFakeStore()
	rec := New(Config{SnapshotTTL: time.Hour}, &fakeBots{}, st,
		&fakePrices{}, nil, testLogger())

	if err := rec.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if st.putCount() != 0 {
		t.Errorf("got %d writes for zero subjects, want 0", st.putCount())
	}
}

func TestRunBatchWritesSnapshotPerBot(t *testing.T) {
	st := newFakeStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedTrade(t, st, "bot-1", base, models.ActionBuy, 100)
	seedTrade(t, st, "bot-1", base.Add(time.Minute), models.ActionSell, 130)

	bots := &fakeBots{active: []models.Bot{activeBot("bot-1", "user-1"), activeBot("bot-2", "user-1")}}
	prices := &fakePrices{prices: map[string]float64{"BTCUSDT": 120}}

	rec := New(Config{SnapshotTTL: time.Hour}, bots, st, prices, nil, testLogger())
	if err := rec.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	for _, botID := range []string{"bot-1", "bot-2"} {
		keys := st.keysWithPrefix(store.BotSnapshotPrefix(botID))
		if len(keys) != 1 {
			t.Fatalf("bot %s has %d snapshots, want 1", botID, len(keys))
		}
	}

	raw, err := st.Get(context.Background(), st.keysWithPrefix(store.BotSnapshotPrefix("bot-1"))[0])
	if err != nil {
		t.Fatal(err)
	}
	var snap models.PerformanceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.TotalBuys != 1 || snap.TotalSells != 1 {
		t.Errorf("counts = %d/%d, want 1/1", snap.TotalBuys, snap.TotalSells)
	}
	if snap.RealisedPnl != 30 {
		t.Errorf("RealisedPnl = %v, want 30", snap.RealisedPnl)
	}
	if snap.CurrentPrice != 120 {
		t.Errorf("CurrentPrice = %v, want 120", snap.CurrentPrice)
	}
	if snap.TTL == 0 {
		t.Error("TTL not set")
	}

	// Both bots belong to one user, so exactly one portfolio snapshot.
	userKeys := st.keysWithPrefix(store.UserSnapshotPrefix("user-1"))
	if len(userKeys) != 1 {
		t.Fatalf("user has %d portfolio snapshots, want 1", len(userKeys))
	}
	raw, err = st.Get(context.Background(), userKeys[0])
	if err != nil {
		t.Fatal(err)
	}
	var portfolio models.PerformanceSnapshot
	if err := json.Unmarshal(raw, &portfolio); err != nil {
		t.Fatal(err)
	}
	if portfolio.ActiveBots != 2 {
		t.Errorf("ActiveBots = %d, want 2", portfolio.ActiveBots)
	}
	if portfolio.NetPnl != snap.NetPnl {
		t.Errorf("portfolio NetPnl = %v, want sum %v", portfolio.NetPnl, snap.NetPnl)
	}
}

func TestRunBatchIsolatesSubjectFailures(t *testing.T) {
	st := newFakeStore()
	st.failPut[store.BotSnapshotPrefix("bot-2")] = true

	bots := &fakeBots{active: []models.Bot{
		activeBot("bot-1", "user-1"),
		activeBot("bot-2", "user-1"),
		activeBot("bot-3", "user-2"),
	}}
	prices := &fakePrices{prices: map[string]float64{"BTCUSDT": 100}}

	rec := New(Config{SnapshotTTL: time.Hour}, bots, st, prices, nil, testLogger())
	if err := rec.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	// All three subjects must have been attempted despite bot-2 failing.
	if got := len(st.keysWithPrefix(store.BotSnapshotPrefix("bot-1"))); got != 1 {
		t.Errorf("bot-1 snapshots = %d, want 1", got)
	}
	if got := len(st.keysWithPrefix(store.BotSnapshotPrefix("bot-2"))); got != 0 {
		t.Errorf("bot-2 snapshots = %d, want 0 after forced failure", got)
	}
	if got := len(st.keysWithPrefix(store.BotSnapshotPrefix("bot-3"))); got != 1 {
		t.Errorf("bot-3 snapshots = %d, want 1", got)
	}

	// The failed bot is excluded from its user's portfolio aggregate.
	raw, err := st.Get(context.Background(), st.keysWithPrefix(store.UserSnapshotPrefix("user-1"))[0])
	if err != nil {
		t.Fatal(err)
	}
	var portfolio models.PerformanceSnapshot
	if err := json.Unmarshal(raw, &portfolio); err != nil {
		t.Fatal(err)
	}
	if portfolio.ActiveBots != 1 {
		t.Errorf("ActiveBots = %d, want 1 after failure", portfolio.ActiveBots)
	}
}

func TestLoadTradesFollowsCursors(t *testing.T) {
	st := newFakeStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		seedTrade(t, st, "bot-1", base.Add(time.Duration(i)*time.Minute), models.ActionBuy, 100)
	}

	rec := New(Config{SnapshotTTL: time.Hour, PageSize: 3},
		&fakeBots{}, st, &fakePrices{}, nil, testLogger())

	trades, err := rec.loadTrades(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("loadTrades: %v", err)
	}
	if len(trades) != 7 {
		t.Errorf("loaded %d trades across pages, want 7", len(trades))
	}
	for i := 1; i < len(trades); i++ {
		if trades[i].Timestamp.Before(trades[i-1].Timestamp) {
			t.Errorf("trades out of order at %d", i)
		}
	}
}
