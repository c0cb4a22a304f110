package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/rulebot/internal/history"
	"github.com/quantfold/rulebot/internal/indicator"
	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/pnl"
	"github.com/quantfold/rulebot/internal/rules"
)

// EngineConfig holds replay parameters.
type EngineConfig struct {
	// Interval is the candle interval replayed (e.g., "1m").
	Interval string

	// WindowSize is the rolling indicator window capacity.
	WindowSize int

	// DefaultNotional is the per-trade notional when the bot's sizing
	// mode is "default".
	DefaultNotional float64
}

// Engine replays candles against a bot's rules and builds a Report.
type Engine struct {
	cfg     EngineConfig
	archive history.Archive
	logger  *slog.Logger
}

// NewEngine creates a replay engine backed by the candle archive.
func NewEngine(cfg EngineConfig, archive history.Archive, logger *slog.Logger) *Engine {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 210
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	return &Engine{cfg: cfg, archive: archive, logger: logger}
}

// Run replays the backtest's window candle by candle. At each step the
// rolling window up to that candle feeds the indicator calculator, the
// bot's rule trees are evaluated against the snapshot, and a match
// appends a simulated trade to the tape. An empty historical window is
// a domain error.
func (e *Engine) Run(ctx context.Context, bot models.Bot, bt models.Backtest) (*Report, error) {
	candles, err := e.archive.CandlesBetween(ctx, bot.Pair, e.cfg.Interval, bt.WindowStart, bt.WindowEnd)
	if err != nil {
		return nil, fmt.Errorf("load candles for %s: %w", bot.Pair, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no archived candles for %s in [%s, %s]",
			bot.Pair, bt.WindowStart.Format(time.RFC3339), bt.WindowEnd.Format(time.RFC3339))
	}

	window := market.NewWindow(e.cfg.WindowSize)
	buckets := newBucketSet(bt.WindowStart, bt.WindowEnd)

	var (
		tape     []models.Trade
		openBuys []time.Time
		holds    []float64
		largest  extremes
	)

	for _, candle := range candles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window.Push(candle)
		buckets.observe(candle)

		snap := indicator.Calculate(window.Candles(), tickerFrom(candle))

		switch {
		case rules.Evaluate(bot.BuyRules, snap):
			trade := e.simulatedTrade(bot, candle, models.ActionBuy)
			tape = append(tape, trade)
			openBuys = append(openBuys, trade.Timestamp)
			buckets.addBuy(trade)

		case rules.Evaluate(bot.SellRules, snap):
			if countPosition(tape) <= 0 {
				continue
			}
			trade := e.simulatedTrade(bot, candle, models.ActionSell)
			realised := trade.Price - pnl.AverageBuyCost(tape)
			tape = append(tape, trade)
			largest.record(realised)
			buckets.addSell(trade, realised)

			// FIFO hold-time matching against the oldest open buy.
			if len(openBuys) > 0 {
				holds = append(holds, trade.Timestamp.Sub(openBuys[0]).Minutes())
				openBuys = openBuys[1:]
			}
		}
	}

	final := pnl.Compute(tape, candles[len(candles)-1].Close)

	report := &Report{
		BacktestID:  bt.ID,
		BotID:       bot.ID,
		Pair:        bot.Pair,
		WindowStart: bt.WindowStart,
		WindowEnd:   bt.WindowEnd,
		SizingMode:  bt.SizingMode,
		Summary: Summary{
			NetPnl:             final.NetPnl,
			WinRate:            final.WinRate,
			TotalTrades:        final.TotalBuys + final.TotalSells,
			TotalBuys:          final.TotalBuys,
			TotalSells:         final.TotalSells,
			LargestGain:        largest.gain,
			LargestLoss:        largest.loss,
			AvgHoldTimeMinutes: mean(holds),
		},
		HourlyBuckets: buckets.ordered(),
		GeneratedAt:   time.Now().UTC(),
	}

	e.logger.Info("Backtest replay finished",
		"backtest", bt.ID, "bot", bot.ID,
		"candles", len(candles), "trades", report.Summary.TotalTrades,
		"netPnl", final.NetPnl)
	return report, nil
}

// simulatedTrade synthesizes one trade at a candle's close price.
func (e *Engine) simulatedTrade(bot models.Bot, candle market.Candle, action string) models.Trade {
	return models.Trade{
		ID:        uuid.NewString(),
		BotID:     bot.ID,
		Timestamp: candle.OpenTime,
		Action:    action,
		Price:     candle.Close,
		Pair:      bot.Pair,
		Trigger:   "backtest",
	}
}

// Notional returns the per-trade notional for a bot under this engine's
// sizing defaults.
func (e *Engine) Notional(bot models.Bot) float64 {
	if bot.SizingMode == models.SizingConfigured && bot.SizeAmount > 0 {
		return bot.SizeAmount
	}
	return e.cfg.DefaultNotional
}

// tickerFrom synthesizes the "now" ticker for a replay step from the
// current candle. The 24h aggregates are unknowable mid-replay and stay
// zero; rules over them simply never match during a backtest.
func tickerFrom(candle market.Candle) market.Ticker24h {
	return market.Ticker24h{
		Symbol:    candle.Symbol,
		LastPrice: candle.Close,
		Volume:    candle.Volume,
	}
}

func countPosition(tape []models.Trade) int {
	net := 0
	for _, t := range tape {
		switch t.Action {
		case models.ActionBuy:
			net++
		case models.ActionSell:
			net--
		}
	}
	return net
}

type extremes struct {
	gain float64
	loss float64
}

func (x *extremes) record(realised float64) {
	if realised > x.gain {
		x.gain = realised
	}
	if realised < x.loss {
		x.loss = realised
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
