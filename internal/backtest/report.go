// Package backtest replays a bot's rules against archived candles and
// produces an hourly-bucketed performance report.
package backtest

import "time"

// Summary holds the headline statistics of one backtest run.
type Summary struct {
	NetPnl             float64 `json:"netPnl"`
	WinRate            float64 `json:"winRate"`
	TotalTrades        int     `json:"totalTrades"`
	TotalBuys          int     `json:"totalBuys"`
	TotalSells         int     `json:"totalSells"`
	LargestGain        float64 `json:"largestGain"`
	LargestLoss        float64 `json:"largestLoss"`
	AvgHoldTimeMinutes float64 `json:"avgHoldTimeMinutes"`
}

// HourlyBucket aggregates the simulated trades of one fixed wall-clock
// hour within the replay window.
type HourlyBucket struct {
	HourStart   time.Time `json:"hourStart"`
	Buys        int       `json:"buys"`
	Sells       int       `json:"sells"`
	RealisedPnl float64   `json:"realisedPnl"`
	OpenPrice   float64   `json:"openPrice"`
	ClosePrice  float64   `json:"closePrice"`
}

// Report is the full result of one backtest run, persisted to object
// storage under the backtest's report key.
type Report struct {
	BacktestID  string    `json:"backtestId"`
	BotID       string    `json:"botId"`
	Pair        string    `json:"pair"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	SizingMode  string    `json:"sizingMode"`

	Summary       Summary        `json:"summary"`
	HourlyBuckets []HourlyBucket `json:"hourlyBuckets"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// ReportKey is the object-store key of a backtest's report.
func ReportKey(backtestID string) string {
	return "backtest-report/" + backtestID
}
