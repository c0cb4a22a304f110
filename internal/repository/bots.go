package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/rules"
)

// BotRepository reads and writes bot configurations.
type BotRepository interface {
	// GetBot returns one bot by id, or ErrBotNotFound.
	GetBot(ctx context.Context, id string) (models.Bot, error)

	// ListActiveBots returns every bot in "active" status.
	ListActiveBots(ctx context.Context) ([]models.Bot, error)

	// SaveBot inserts or updates a bot configuration.
	SaveBot(ctx context.Context, bot models.Bot) error
}

type botRepository struct {
	db *sqlx.DB
}

// NewBotRepository creates a Postgres-backed BotRepository.
func NewBotRepository(db *sqlx.DB) BotRepository {
	return &botRepository{db: db}
}

// botRow mirrors the bots table; rule trees are stored as JSONB.
type botRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Name       string    `db:"name"`
	Pair       string    `db:"pair"`
	Status     string    `db:"status"`
	BuyRules   []byte    `db:"buy_rules"`
	SellRules  []byte    `db:"sell_rules"`
	SizingMode string    `db:"sizing_mode"`
	SizeAmount float64   `db:"size_amount"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r botRow) toModel() (models.Bot, error) {
	bot := models.Bot{
		ID:         r.ID,
		UserID:     r.UserID,
		Name:       r.Name,
		Pair:       r.Pair,
		Status:     r.Status,
		SizingMode: r.SizingMode,
		SizeAmount: r.SizeAmount,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if len(r.BuyRules) > 0 {
		if err := json.Unmarshal(r.BuyRules, &bot.BuyRules); err != nil {
			return models.Bot{}, fmt.Errorf("decode buy rules for bot %s: %w", r.ID, err)
		}
	}
	if len(r.SellRules) > 0 {
		if err := json.Unmarshal(r.SellRules, &bot.SellRules); err != nil {
			return models.Bot{}, fmt.Errorf("decode sell rules for bot %s: %w", r.ID, err)
		}
	}
	return bot, nil
}

func encodeRules(g rules.Group) ([]byte, error) {
	return json.Marshal(g)
}

func (r *botRepository) GetBot(ctx context.Context, id string) (models.Bot, error) {
	var row botRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, pair, status, buy_rules, sell_rules,
		       sizing_mode, size_amount, created_at, updated_at
		FROM bots WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bot{}, ErrBotNotFound
	}
	if err != nil {
		return models.Bot{}, fmt.Errorf("get bot %s: %w", id, err)
	}
	return row.toModel()
}

func (r *botRepository) ListActiveBots(ctx context.Context) ([]models.Bot, error) {
	var bots []models.Bot

	var anyRows []botRow
	err := r.db.SelectContext(ctx, &anyRows, `
		SELECT id, user_id, name, pair, status, buy_rules, sell_rules,
		       sizing_mode, size_amount, created_at, updated_at
		FROM bots WHERE status = $1 ORDER BY created_at
	`, models.BotStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active bots: %w", err)
	}

	for _, row := range anyRows {
		bot, err := row.toModel()
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}
	return bots, nil
}

func (r *botRepository) SaveBot(ctx context.Context, bot models.Bot) error {
	buyRules, err := encodeRules(bot.BuyRules)
	if err != nil {
		return fmt.Errorf("encode buy rules: %w", err)
	}
	sellRules, err := encodeRules(bot.SellRules)
	if err != nil {
		return fmt.Errorf("encode sell rules: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bots (id, user_id, name, pair, status, buy_rules, sell_rules,
		                  sizing_mode, size_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			pair = EXCLUDED.pair,
			status = EXCLUDED.status,
			buy_rules = EXCLUDED.buy_rules,
			sell_rules = EXCLUDED.sell_rules,
			sizing_mode = EXCLUDED.sizing_mode,
			size_amount = EXCLUDED.size_amount,
			updated_at = now()
	`, bot.ID, bot.UserID, bot.Name, bot.Pair, bot.Status, buyRules, sellRules,
		bot.SizingMode, bot.SizeAmount)
	if err != nil {
		return fmt.Errorf("save bot %s: %w", bot.ID, err)
	}
	return nil
}
