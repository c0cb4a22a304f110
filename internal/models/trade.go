package models

import "time"

// Trade actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Trade is one entry in a bot's trade tape. Tapes are append-only and
// ordered by timestamp; a trade is never edited after creation.
type Trade struct {
	// ID is the unique trade identifier.
	ID string `json:"id"`

	// BotID is the bot that produced the trade.
	BotID string `json:"botId"`

	// Timestamp is when the trade executed.
	Timestamp time.Time `json:"timestamp"`

	// Action is "buy" or "sell".
	Action string `json:"action"`

	// Price is the execution price.
	Price float64 `json:"price"`

	// Pair is the traded pair.
	Pair string `json:"pair"`

	// Trigger describes what fired the trade (e.g., "rule_match", "backtest").
	Trigger string `json:"trigger"`
}
