package market

import (
	"testing"
	"time"
)

func candleAt(min int, close float64) Candle {
	return Candle{
		OpenTime: time.Date(2026, 3, 1, 12, min, 0, 0, time.UTC),
		Close:    close,
	}
}

func TestWindowPushEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Push(candleAt(i, float64(i)))
	}

	if !w.Full() {
		t.Error("window should be full after overshooting capacity")
	}
	candles := w.Candles()
	if len(candles) != 3 {
		t.Fatalf("len = %d, want 3", len(candles))
	}
	if candles[0].Close != 2 || candles[2].Close != 4 {
		t.Errorf("window holds %v..%v, want 2..4", candles[0].Close, candles[2].Close)
	}
}

func TestWindowPushUpdatesUnfinishedCandle(t *testing.T) {
	w := NewWindow(3)
	w.Push(candleAt(0, 100))
	w.Push(candleAt(0, 101)) // same open time, updated close

	if w.Len() != 1 {
		t.Fatalf("len = %d, want 1 after duplicate open time", w.Len())
	}
	if got := w.Candles()[0].Close; got != 101 {
		t.Errorf("close = %v, want the updated 101", got)
	}
}

func TestWindowPushDropsOutOfOrder(t *testing.T) {
	w := NewWindow(3)
	w.Push(candleAt(5, 100))
	w.Push(candleAt(3, 99))

	if w.Len() != 1 {
		t.Errorf("len = %d, want 1 after dropping an out-of-order candle", w.Len())
	}
}

func TestWindowReplaceKeepsNewest(t *testing.T) {
	w := NewWindow(2)
	series := []Candle{candleAt(0, 1), candleAt(1, 2), candleAt(2, 3)}
	w.Replace(series)

	candles := w.Candles()
	if len(candles) != 2 {
		t.Fatalf("len = %d, want capacity 2", len(candles))
	}
	if candles[0].Close != 2 || candles[1].Close != 3 {
		t.Errorf("window holds %v/%v, want the newest 2/3", candles[0].Close, candles[1].Close)
	}
}

func TestClosesExtractsInOrder(t *testing.T) {
	candles := []Candle{candleAt(0, 10), candleAt(1, 20), candleAt(2, 30)}

	closes := Closes(candles)
	if len(closes) != 3 {
		t.Fatalf("len = %d, want 3", len(closes))
	}
	for i, want := range []float64{10, 20, 30} {
		if closes[i] != want {
			t.Errorf("closes[%d] = %v, want %v", i, closes[i], want)
		}
	}
}
