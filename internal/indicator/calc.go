package indicator

import (
	"math"

	"github.com/quantfold/rulebot/internal/market"
)

const (
	rsiNeutral = 50

	bollingerPeriod = 20
	bollingerWidth  = 2
	// nearBandFraction defines the "near the edge" zone as a fraction of
	// the band width.
	nearBandFraction = 0.05
)

// Calculate derives a full indicator snapshot from a candle series (oldest
// first) and the most recent 24h ticker. Price, volume and percent change
// come from the ticker; candles feed only the trailing statistics. The
// function never fails: insufficient history yields the documented
// defaults for each indicator.
func Calculate(candles []market.Candle, ticker market.Ticker24h) Snapshot {
	closes := market.Closes(candles)

	hist, signal := MACD(closes)
	upper, lower, position := BollingerBands(closes, ticker.LastPrice)

	return Snapshot{
		Price:          finite(ticker.LastPrice),
		Volume24h:      finite(ticker.Volume),
		PriceChangePct: finite(ticker.PriceChangePct),

		RSI14:         finite(RSI(closes, 14)),
		RSI7:          finite(RSI(closes, 7)),
		MACDHistogram: finite(hist),
		MACDSignal:    signal,

		SMA20:  finite(SMA(closes, 20)),
		SMA50:  finite(SMA(closes, 50)),
		SMA200: finite(SMA(closes, 200)),
		EMA12:  finite(EMA(closes, 12)),
		EMA20:  finite(EMA(closes, 20)),
		EMA26:  finite(EMA(closes, 26)),

		BBUpper:    finite(upper),
		BBLower:    finite(lower),
		BBPosition: position,
	}
}

// SMA returns the mean of the last period closes, or 0 when the series is
// shorter than period. period=1 returns the last close.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of the series: seeded with
// the SMA of the first period closes, then smoothed across the remainder
// with k = 2/(period+1). When len(closes) == period the result equals the
// SMA seed. Returns 0 on insufficient data.
func EMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	series := emaSeries(closes, period)
	return series[len(series)-1]
}

// emaSeries returns the EMA value at every index >= period-1; earlier
// entries are 0. Callers must ensure len(values) >= period.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	k := 2.0 / (float64(period) + 1.0)
	ema := seed
	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// RSI returns the relative strength index over the last period deltas
// using simple (not Wilder-smoothed) gain/loss averages. It requires
// period+1 closes and returns the neutral value 50 otherwise. A flat
// window is also neutral; all gains return 100 and all losses 0. The
// result is always clamped to [0, 100].
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return rsiNeutral
	}

	var gains, losses float64
	window := closes[len(closes)-period-1:]
	for i := 1; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return rsiNeutral
		}
		return 100
	}

	rsi := 100 - 100/(1+avgGain/avgLoss)
	return math.Max(0, math.Min(100, rsi))
}

// MACD returns the MACD histogram (EMA12 - EMA26) and a classification of
// the histogram against its trailing EMA(9) signal line. Fewer than 26
// closes yields {0, below_signal}. A crossover is reported when the sign
// of histogram-minus-signal flips between the last two periods; otherwise
// the plain above/below relation is returned.
func MACD(closes []float64) (float64, string) {
	const (
		fast   = 12
		slow   = 26
		smooth = 9
	)
	if len(closes) < slow {
		return 0, SignalBelowSignal
	}

	ema12 := emaSeries(closes, fast)
	ema26 := emaSeries(closes, slow)

	// Histogram values exist from index slow-1 onward.
	hist := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		hist = append(hist, ema12[i]-ema26[i])
	}
	current := hist[len(hist)-1]

	if len(hist) < smooth+1 {
		// Not enough history for a stable signal line; classify against
		// the zero line.
		if current >= 0 {
			return current, SignalAboveSignal
		}
		return current, SignalBelowSignal
	}

	signal := emaSeries(hist, smooth)
	currDiff := hist[len(hist)-1] - signal[len(signal)-1]
	prevDiff := hist[len(hist)-2] - signal[len(signal)-2]

	switch {
	case prevDiff <= 0 && currDiff > 0:
		return current, SignalBullishCrossover
	case prevDiff >= 0 && currDiff < 0:
		return current, SignalBearishCrossover
	case currDiff >= 0:
		return current, SignalAboveSignal
	default:
		return current, SignalBelowSignal
	}
}

// BollingerBands returns the upper band, lower band, and the price
// position relative to them (period 20, width 2, population standard
// deviation). Fewer than 20 closes yields {0, 0, between_bands}.
func BollingerBands(closes []float64, price float64) (float64, float64, string) {
	if len(closes) < bollingerPeriod {
		return 0, 0, BandBetweenBands
	}

	middle := SMA(closes, bollingerPeriod)

	var sumSq float64
	for _, c := range closes[len(closes)-bollingerPeriod:] {
		d := c - middle
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / bollingerPeriod)

	upper := middle + bollingerWidth*stddev
	lower := middle - bollingerWidth*stddev

	return upper, lower, classifyBandPosition(price, upper, lower)
}

func classifyBandPosition(price, upper, lower float64) string {
	width := upper - lower
	if width <= 0 {
		return BandBetweenBands
	}
	switch {
	case price > upper:
		return BandAboveUpper
	case price < lower:
		return BandBelowLower
	case price >= upper-nearBandFraction*width:
		return BandNearUpper
	case price <= lower+nearBandFraction*width:
		return BandNearLower
	default:
		return BandBetweenBands
	}
}

// finite guards against NaN/Inf escaping into a snapshot.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
