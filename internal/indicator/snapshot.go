// Package indicator computes technical indicator snapshots from candle
// history and ticker data. All calculations are pure and total: missing
// history produces documented defaults, never an error or a NaN.
package indicator

// MACD signal classifications.
const (
	SignalBullishCrossover = "bullish_crossover"
	SignalBearishCrossover = "bearish_crossover"
	SignalAboveSignal      = "above_signal"
	SignalBelowSignal      = "below_signal"
)

// Bollinger band position classifications.
const (
	BandAboveUpper   = "above_upper"
	BandBelowLower   = "below_lower"
	BandNearUpper    = "near_upper"
	BandNearLower    = "near_lower"
	BandBetweenBands = "between_bands"
)

// Snapshot is a point-in-time bundle of derived technical statistics.
// It is computed once per market tick and never partially populated.
// The JSON field names are load-bearing: rule fields and downstream
// consumers address indicators by these exact names.
type Snapshot struct {
	Price          float64 `json:"price"`
	Volume24h      float64 `json:"volume_24h"`
	PriceChangePct float64 `json:"price_change_pct"`

	RSI14         float64 `json:"rsi_14"`
	RSI7          float64 `json:"rsi_7"`
	MACDHistogram float64 `json:"macd_histogram"`
	MACDSignal    string  `json:"macd_signal"`

	SMA20  float64 `json:"sma_20"`
	SMA50  float64 `json:"sma_50"`
	SMA200 float64 `json:"sma_200"`
	EMA12  float64 `json:"ema_12"`
	EMA20  float64 `json:"ema_20"`
	EMA26  float64 `json:"ema_26"`

	BBUpper    float64 `json:"bb_upper"`
	BBLower    float64 `json:"bb_lower"`
	BBPosition string  `json:"bb_position"`
}

// Numeric looks up a numeric indicator by its wire name. The second
// return is false for unknown or non-numeric fields.
func (s Snapshot) Numeric(field string) (float64, bool) {
	switch field {
	case "price":
		return s.Price, true
	case "volume_24h":
		return s.Volume24h, true
	case "price_change_pct":
		return s.PriceChangePct, true
	case "rsi_14":
		return s.RSI14, true
	case "rsi_7":
		return s.RSI7, true
	case "macd_histogram":
		return s.MACDHistogram, true
	case "sma_20":
		return s.SMA20, true
	case "sma_50":
		return s.SMA50, true
	case "sma_200":
		return s.SMA200, true
	case "ema_12":
		return s.EMA12, true
	case "ema_20":
		return s.EMA20, true
	case "ema_26":
		return s.EMA26, true
	case "bb_upper":
		return s.BBUpper, true
	case "bb_lower":
		return s.BBLower, true
	}
	return 0, false
}

// Categorical looks up a string-typed indicator by its wire name.
func (s Snapshot) Categorical(field string) (string, bool) {
	switch field {
	case "macd_signal":
		return s.MACDSignal, true
	case "bb_position":
		return s.BBPosition, true
	}
	return "", false
}
