package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/quantfold/rulebot/internal/models"
)

// BacktestRepository manages backtest metadata records through their
// status lifecycle.
type BacktestRepository interface {
	// Create inserts a new backtest in pending status.
	Create(ctx context.Context, bt models.Backtest) error

	// Get returns one backtest by id, or ErrBacktestNotFound.
	Get(ctx context.Context, id string) (models.Backtest, error)

	// ClaimPending atomically moves the oldest pending backtest to
	// running and returns it, or ErrNoPendingWork.
	ClaimPending(ctx context.Context) (models.Backtest, error)

	// SetConfigSnapshot records the validated rule configuration.
	SetConfigSnapshot(ctx context.Context, id, snapshot string) error

	// Complete marks a backtest completed with its report key.
	Complete(ctx context.Context, id, reportKey string) error

	// Fail marks a backtest failed with a human-readable reason.
	Fail(ctx context.Context, id, errorMessage string) error

	// MarkConfigChanged flags terminal backtests of a bot whose
	// configuration changed after the run.
	MarkConfigChanged(ctx context.Context, botID string) error
}

type backtestRepository struct {
	db *sqlx.DB
}

// NewBacktestRepository creates a Postgres-backed BacktestRepository.
func NewBacktestRepository(db *sqlx.DB) BacktestRepository {
	return &backtestRepository{db: db}
}

const backtestColumns = `
	id, bot_id, user_id, status, window_start, window_end, sizing_mode,
	config_snapshot, config_changed_since_test, report_key, error_message,
	created_at, updated_at
`

func (r *backtestRepository) Create(ctx context.Context, bt models.Backtest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backtests (id, bot_id, user_id, status, window_start, window_end,
		                       sizing_mode, config_snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', now(), now())
	`, bt.ID, bt.BotID, bt.UserID, models.BacktestStatusPending,
		bt.WindowStart, bt.WindowEnd, bt.SizingMode)
	if err != nil {
		return fmt.Errorf("create backtest %s: %w", bt.ID, err)
	}
	return nil
}

func (r *backtestRepository) Get(ctx context.Context, id string) (models.Backtest, error) {
	var bt models.Backtest
	err := r.db.GetContext(ctx, &bt,
		`SELECT `+backtestColumns+` FROM backtests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Backtest{}, ErrBacktestNotFound
	}
	if err != nil {
		return models.Backtest{}, fmt.Errorf("get backtest %s: %w", id, err)
	}
	return bt, nil
}

func (r *backtestRepository) ClaimPending(ctx context.Context) (models.Backtest, error) {
	var bt models.Backtest
	err := r.db.GetContext(ctx, &bt, `
		UPDATE backtests SET status = $1, updated_at = now()
		WHERE id = (
			SELECT id FROM backtests
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+backtestColumns,
		models.BacktestStatusRunning, models.BacktestStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Backtest{}, ErrNoPendingWork
	}
	if err != nil {
		return models.Backtest{}, fmt.Errorf("claim pending backtest: %w", err)
	}
	return bt, nil
}

func (r *backtestRepository) SetConfigSnapshot(ctx context.Context, id, snapshot string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backtests SET config_snapshot = $2, updated_at = now() WHERE id = $1
	`, id, snapshot)
	if err != nil {
		return fmt.Errorf("set config snapshot for backtest %s: %w", id, err)
	}
	return nil
}

func (r *backtestRepository) Complete(ctx context.Context, id, reportKey string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backtests SET status = $2, report_key = $3, updated_at = now()
		WHERE id = $1
	`, id, models.BacktestStatusCompleted, reportKey)
	if err != nil {
		return fmt.Errorf("complete backtest %s: %w", id, err)
	}
	return nil
}

func (r *backtestRepository) Fail(ctx context.Context, id, errorMessage string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backtests SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1
	`, id, models.BacktestStatusFailed, errorMessage)
	if err != nil {
		return fmt.Errorf("fail backtest %s: %w", id, err)
	}
	return nil
}

func (r *backtestRepository) MarkConfigChanged(ctx context.Context, botID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backtests SET config_changed_since_test = TRUE, updated_at = now()
		WHERE bot_id = $1 AND status IN ($2, $3)
	`, botID, models.BacktestStatusCompleted, models.BacktestStatusFailed)
	if err != nil {
		return fmt.Errorf("mark config changed for bot %s: %w", botID, err)
	}
	return nil
}
