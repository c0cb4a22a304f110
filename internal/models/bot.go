// Package models defines the domain records shared across the platform:
// bots, trades, performance snapshots, and backtest metadata.
package models

import (
	"time"

	"github.com/quantfold/rulebot/internal/rules"
)

// Bot statuses.
const (
	BotStatusActive = "active"
	BotStatusPaused = "paused"
)

// Sizing modes for simulated and live trades.
const (
	SizingConfigured = "configured"
	SizingDefault    = "default"
)

// Bot is a user-authored trading bot: a pair plus buy/sell rule trees.
type Bot struct {
	// ID is the unique bot identifier.
	ID string `json:"id" db:"id"`

	// UserID is the owning user.
	UserID string `json:"userId" db:"user_id"`

	// Name is the user-facing bot name.
	Name string `json:"name" db:"name"`

	// Pair is the traded pair (e.g., "BTCUSDT").
	Pair string `json:"pair" db:"pair"`

	// Status is "active" or "paused"; only active bots are recorded.
	Status string `json:"status" db:"status"`

	// BuyRules is the rule tree that triggers buy trades.
	BuyRules rules.Group `json:"buyRules" db:"-"`

	// SellRules is the rule tree that triggers sell trades.
	SellRules rules.Group `json:"sellRules" db:"-"`

	// SizingMode selects "configured" fixed sizing or the "default" notional.
	SizingMode string `json:"sizingMode" db:"sizing_mode"`

	// SizeAmount is the per-trade notional when SizingMode is "configured".
	SizeAmount float64 `json:"sizeAmount" db:"size_amount"`

	// CreatedAt is when the bot was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is when the bot configuration last changed.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
