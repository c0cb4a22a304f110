package market

// Window is a fixed-capacity rolling candle window, oldest first.
// Appending past capacity evicts the oldest candles. Not safe for
// concurrent use; each feed loop owns its own window.
type Window struct {
	capacity int
	candles  []Candle
}

// NewWindow creates a rolling window holding at most capacity candles.
// Long-period indicators need at least 200.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 200
	}
	return &Window{
		capacity: capacity,
		candles:  make([]Candle, 0, capacity),
	}
}

// Push appends a candle, replacing the newest entry when the open time
// matches (an unfinished candle being updated) and evicting the oldest
// entry once the window is full.
func (w *Window) Push(c Candle) {
	n := len(w.candles)
	if n > 0 && w.candles[n-1].OpenTime.Equal(c.OpenTime) {
		w.candles[n-1] = c
		return
	}
	// Out-of-order candles are dropped; the feed always appends forward.
	if n > 0 && c.OpenTime.Before(w.candles[n-1].OpenTime) {
		return
	}
	if n == w.capacity {
		copy(w.candles, w.candles[1:])
		w.candles[n-1] = c
		return
	}
	w.candles = append(w.candles, c)
}

// Replace resets the window contents to the given series, keeping only
// the newest capacity candles.
func (w *Window) Replace(candles []Candle) {
	w.candles = w.candles[:0]
	start := 0
	if len(candles) > w.capacity {
		start = len(candles) - w.capacity
	}
	w.candles = append(w.candles, candles[start:]...)
}

// Candles returns the current window contents, oldest first.
// The returned slice is shared; callers must not mutate it.
func (w *Window) Candles() []Candle {
	return w.candles
}

// Len returns the number of candles currently held.
func (w *Window) Len() int {
	return len(w.candles)
}

// Full reports whether the window has reached capacity.
func (w *Window) Full() bool {
	return len(w.candles) == w.capacity
}
