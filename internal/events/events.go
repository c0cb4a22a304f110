// Package events publishes indicator updates and domain events to Kafka.
// Publishing is best effort: the engine makes a single publish call and
// never blocks on downstream delivery.
package events

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/quantfold/rulebot/internal/indicator"
)

// Domain event types.
const (
	TypeIndicatorUpdated  = "indicator.updated"
	TypeSnapshotRecorded  = "bot.snapshot.recorded"
	TypeBacktestCompleted = "backtest.completed"
	TypeBacktestFailed    = "backtest.failed"
)

// Event is one domain event on the wire.
type Event struct {
	// Type is one of the Type* constants.
	Type string `json:"type"`

	// Subject is the bot, user, or backtest the event is about.
	Subject string `json:"subject"`

	// Message is a human-readable one-line description.
	Message string `json:"message"`

	// Payload carries the event-specific body.
	Payload interface{} `json:"payload,omitempty"`

	// OccurredAt is when the event was produced.
	OccurredAt time.Time `json:"occurredAt"`
}

// IndicatorUpdate is the payload of an indicator.updated event.
type IndicatorUpdate struct {
	Symbol     string             `json:"symbol"`
	Indicators indicator.Snapshot `json:"indicators"`
	ComputedAt time.Time          `json:"computedAt"`
}

// NewSnapshotRecorded builds the event emitted after a performance
// snapshot is written.
func NewSnapshotRecorded(botID string, netPnl float64) Event {
	return Event{
		Type:       TypeSnapshotRecorded,
		Subject:    botID,
		Message:    "net P&L " + humanize.CommafWithDigits(netPnl, 2),
		OccurredAt: time.Now().UTC(),
	}
}

// NewBacktestCompleted builds the event emitted on the workflow's success
// path.
func NewBacktestCompleted(backtestID string, netPnl float64, totalTrades int) Event {
	return Event{
		Type:    TypeBacktestCompleted,
		Subject: backtestID,
		Message: "backtest finished: " + humanize.Comma(int64(totalTrades)) +
			" trades, net P&L " + humanize.CommafWithDigits(netPnl, 2),
		OccurredAt: time.Now().UTC(),
	}
}

// NewBacktestFailed builds the event emitted on the workflow's failure
// branch.
func NewBacktestFailed(backtestID, reason string) Event {
	return Event{
		Type:       TypeBacktestFailed,
		Subject:    backtestID,
		Message:    "backtest failed: " + reason,
		OccurredAt: time.Now().UTC(),
	}
}
