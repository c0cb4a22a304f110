package models

import "time"

// PerformanceSnapshot is one immutable point in a subject's performance
// time series, written once per recording interval and keyed by
// (subject id, timestamp). The JSON field names are load-bearing for
// downstream consumers.
type PerformanceSnapshot struct {
	// BotID identifies a bot-level snapshot; empty for portfolio snapshots.
	BotID string `json:"botId,omitempty"`

	// Sub identifies the user for portfolio-level snapshots.
	Sub string `json:"sub,omitempty"`

	// Timestamp is the recording time (ISO-8601 on the wire).
	Timestamp time.Time `json:"timestamp"`

	TotalBuys     int     `json:"totalBuys"`
	TotalSells    int     `json:"totalSells"`
	RealisedPnl   float64 `json:"realisedPnl"`
	UnrealisedPnl float64 `json:"unrealisedPnl"`
	NetPnl        float64 `json:"netPnl"`
	NetPosition   int     `json:"netPosition"`
	WinRate       float64 `json:"winRate"`
	CurrentPrice  float64 `json:"currentPrice"`

	// Pnl24h is the change in net P&L over the trailing 24 hours; only
	// populated on portfolio-level snapshots.
	Pnl24h float64 `json:"pnl24h,omitempty"`

	// ActiveBots counts the bots aggregated into a portfolio snapshot.
	ActiveBots int `json:"activeBots,omitempty"`

	// TTL is the retention deadline in epoch seconds.
	TTL int64 `json:"ttl"`
}
