// Package history provides the append-only candle archive backing
// backtests. Candles are written by the live feed and read back as
// historical windows.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"github.com/quantfold/rulebot/internal/market"
)

// Archive stores and retrieves candle history. Implementations must be
// safe for concurrent use.
type Archive interface {
	// SaveCandles inserts a batch of candles.
	SaveCandles(ctx context.Context, candles []market.Candle) error

	// CandlesBetween returns candles for symbol/interval with open time
	// in [from, to], oldest first.
	CandlesBetween(ctx context.Context, symbol, interval string, from, to time.Time) ([]market.Candle, error)
}

// candleRow mirrors the candle table.
type candleRow struct {
	ID         string    `gorm:"column:id"`
	Symbol     string    `gorm:"column:symbol"`
	Interval   string    `gorm:"column:interval"`
	Open       float64   `gorm:"column:open"`
	High       float64   `gorm:"column:high"`
	Low        float64   `gorm:"column:low"`
	Close      float64   `gorm:"column:close"`
	Volume     float64   `gorm:"column:volume"`
	OpenTime   time.Time `gorm:"column:open_time"`
	InsertedAt time.Time `gorm:"column:inserted_at"`
}

func (candleRow) TableName() string {
	return "candles"
}

type gormArchive struct {
	db *gorm.DB
}

// NewClickHouseArchive connects to ClickHouse and returns an Archive.
func NewClickHouseArchive(dsn string) (Archive, error) {
	db, err := gorm.Open(clickhouse.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	return &gormArchive{db: db}, nil
}

// NewGormArchive wraps an existing gorm connection.
func NewGormArchive(db *gorm.DB) Archive {
	return &gormArchive{db: db}
}

// SaveCandles inserts candles in one batch. The row id is
// symbol-interval-openTime, so re-ingesting a window is idempotent at the
// table's merge stage rather than producing divergent rows.
func (a *gormArchive) SaveCandles(ctx context.Context, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]candleRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, candleRow{
			ID:         fmt.Sprintf("%s-%s-%d", c.Symbol, c.Interval, c.OpenTime.Unix()),
			Symbol:     c.Symbol,
			Interval:   c.Interval,
			Open:       c.Open,
			High:       c.High,
			Low:        c.Low,
			Close:      c.Close,
			Volume:     c.Volume,
			OpenTime:   c.OpenTime.UTC(),
			InsertedAt: now,
		})
	}

	if err := a.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("save %d candles: %w", len(rows), err)
	}
	return nil
}

func (a *gormArchive) CandlesBetween(ctx context.Context, symbol, interval string, from, to time.Time) ([]market.Candle, error) {
	var rows []candleRow
	err := a.db.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND open_time >= ? AND open_time <= ?",
			symbol, interval, from.UTC(), to.UTC()).
		Order("open_time").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query candles %s %s: %w", symbol, interval, err)
	}

	out := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Candle{
			Symbol:   r.Symbol,
			Interval: r.Interval,
			OpenTime: r.OpenTime,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		})
	}
	return out, nil
}
