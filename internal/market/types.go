// Package market provides market data types, the exchange client, and the
// rolling candle window consumed by the indicator calculator.
package market

import "time"

// Candle represents a single OHLCV candlestick.
type Candle struct {
	// Symbol is the trading pair (e.g., "BTCUSDT").
	Symbol string `json:"symbol"`

	// Interval is the candle timeframe: "1m", "5m", "1h", etc.
	Interval string `json:"interval"`

	// OpenTime is when the candle opened.
	OpenTime time.Time `json:"open_time"`

	// Open is the opening price of the candle.
	Open float64 `json:"open"`

	// High is the highest price during the candle period.
	High float64 `json:"high"`

	// Low is the lowest price during the candle period.
	Low float64 `json:"low"`

	// Close is the closing price of the candle.
	Close float64 `json:"close"`

	// Volume is the trading volume during the candle period.
	Volume float64 `json:"volume"`
}

// Ticker24h is the most recent 24-hour rolling ticker snapshot for a symbol.
// It is authoritative for "now"; candles are for trailing statistics only.
type Ticker24h struct {
	// Symbol is the trading pair.
	Symbol string `json:"symbol"`

	// LastPrice is the most recent trade price.
	LastPrice float64 `json:"last_price"`

	// Volume is the traded base volume over the last 24 hours.
	Volume float64 `json:"volume"`

	// PriceChangePct is the 24-hour price change in percent.
	PriceChangePct float64 `json:"price_change_pct"`
}

// Closes extracts the close prices from a candle series, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
