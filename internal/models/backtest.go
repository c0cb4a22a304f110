package models

import "time"

// Backtest statuses. A backtest is immutable once in a terminal state
// except for the ConfigChangedSinceTest flag, which is set externally
// when the bot configuration diverges from the tested snapshot.
const (
	BacktestStatusPending   = "pending"
	BacktestStatusRunning   = "running"
	BacktestStatusCompleted = "completed"
	BacktestStatusFailed    = "failed"
)

// Backtest is the metadata record of one backtest run. The report body
// lives in object storage under ReportKey.
type Backtest struct {
	// ID is the unique backtest identifier.
	ID string `json:"id" db:"id"`

	// BotID is the bot whose rules are replayed.
	BotID string `json:"botId" db:"bot_id"`

	// UserID is the requesting user; validation confirms bot ownership.
	UserID string `json:"userId" db:"user_id"`

	// Status follows pending → running → completed|failed.
	Status string `json:"status" db:"status"`

	// WindowStart and WindowEnd bound the replayed historical window.
	WindowStart time.Time `json:"windowStart" db:"window_start"`
	WindowEnd   time.Time `json:"windowEnd" db:"window_end"`

	// SizingMode is the sizing mode captured at request time.
	SizingMode string `json:"sizingMode" db:"sizing_mode"`

	// ConfigSnapshot is the bot rule configuration serialized at
	// validation time, for later "config changed since test" comparison.
	ConfigSnapshot string `json:"-" db:"config_snapshot"`

	// ConfigChangedSinceTest marks reports whose bot was edited after the run.
	ConfigChangedSinceTest bool `json:"configChangedSinceTest" db:"config_changed_since_test"`

	// ReportKey is the object-store key of the completed report.
	ReportKey string `json:"reportKey,omitempty" db:"report_key"`

	// ErrorMessage is the human-readable failure reason on the failed path.
	ErrorMessage string `json:"errorMessage,omitempty" db:"error_message"`

	// CreatedAt is when the backtest was requested.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is when the metadata record last changed.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
