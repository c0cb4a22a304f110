// Package workflow sequences one backtest run through its stages:
// validate and snapshot the configuration, wait, run the replay engine,
// and write the report. Any stage failure routes through a single
// terminal handler so a backtest never stays stuck in pending or
// running.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/rulebot/internal/backtest"
	"github.com/quantfold/rulebot/internal/events"
	"github.com/quantfold/rulebot/internal/metrics"
	"github.com/quantfold/rulebot/internal/models"
	"github.com/quantfold/rulebot/internal/objectstore"
	"github.com/quantfold/rulebot/internal/repository"
	"github.com/quantfold/rulebot/internal/rules"
)

// Config holds workflow orchestration settings.
type Config struct {
	// PollInterval is the delay between claim attempts when driven by Run.
	PollInterval time.Duration

	// Timeout bounds one whole workflow execution across all stages.
	Timeout time.Duration

	// MaxWait caps the artificial delay before the engine stage.
	MaxWait time.Duration
}

// Workflow executes claimed backtests end to end.
type Workflow struct {
	cfg       Config
	backtests repository.BacktestRepository
	bots      repository.BotRepository
	engine    *backtest.Engine
	reports   objectstore.ObjectStore
	publisher events.Publisher
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Workflow. The publisher may be nil when event fan-out
// is disabled.
func New(cfg Config, backtests repository.BacktestRepository, bots repository.BotRepository,
	engine *backtest.Engine, reports objectstore.ObjectStore,
	publisher events.Publisher, logger *slog.Logger) *Workflow {

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Workflow{
		cfg:       cfg,
		backtests: backtests,
		bots:      bots,
		engine:    engine,
		reports:   reports,
		publisher: publisher,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Run polls for pending backtests and executes each claimed one until
// ctx is cancelled.
func (w *Workflow) Run(ctx context.Context) error {
	w.logger.Info("Starting backtest workflow loop", "pollInterval", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Backtest workflow loop stopped")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and executes pending backtests until the queue is empty.
func (w *Workflow) drain(ctx context.Context) {
	for {
		bt, err := w.backtests.ClaimPending(ctx)
		if errors.Is(err, repository.ErrNoPendingWork) {
			return
		}
		if err != nil {
			w.logger.Error("Claiming pending backtest failed", "error", err)
			return
		}
		w.Execute(ctx, bt)
	}
}

// Execute runs one claimed backtest through every stage under the
// workflow timeout. All errors terminate through fail; Execute itself
// never returns one.
func (w *Workflow) Execute(ctx context.Context, bt models.Backtest) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	started := time.Now()
	w.logger.Info("Executing backtest", "backtest", bt.ID, "bot", bt.BotID)

	bot, err := w.validate(ctx, bt)
	if err != nil {
		w.fail(bt, fmt.Errorf("validation: %w", err))
		return
	}

	if err := w.wait(ctx, bt); err != nil {
		w.fail(bt, fmt.Errorf("wait: %w", err))
		return
	}

	report, err := w.engine.Run(ctx, bot, bt)
	if err != nil {
		w.fail(bt, fmt.Errorf("engine: %w", err))
		return
	}

	if err := w.writeReport(ctx, bt, report); err != nil {
		w.fail(bt, fmt.Errorf("write report: %w", err))
		return
	}

	metrics.Backtests.WithLabelValues("completed").Inc()
	metrics.BacktestDuration.Observe(time.Since(started).Seconds())
	w.logger.Info("Backtest completed",
		"backtest", bt.ID, "trades", report.Summary.TotalTrades, "took", time.Since(started))

	if w.publisher != nil {
		evt := events.NewBacktestCompleted(bt.ID, report.Summary.NetPnl, report.Summary.TotalTrades)
		if err := w.publisher.PublishEvent(ctx, evt); err != nil {
			w.logger.Warn("Backtest event publish failed", "backtest", bt.ID, "error", err)
		}
	}
}

// validate confirms the bot exists and belongs to the requesting user,
// and captures the rule configuration for later comparison. Reissuing
// it after a retry is safe.
func (w *Workflow) validate(ctx context.Context, bt models.Backtest) (models.Bot, error) {
	bot, err := w.bots.GetBot(ctx, bt.BotID)
	if err != nil {
		return models.Bot{}, err
	}
	if bot.UserID != bt.UserID {
		return models.Bot{}, fmt.Errorf("bot %s does not belong to user %s", bt.BotID, bt.UserID)
	}
	if bt.WindowEnd.Before(bt.WindowStart) || bt.WindowEnd.Equal(bt.WindowStart) {
		return models.Bot{}, fmt.Errorf("window end %s is not after start %s",
			bt.WindowEnd.Format(time.RFC3339), bt.WindowStart.Format(time.RFC3339))
	}

	snapshot, err := json.Marshal(struct {
		BuyRules  rules.Group `json:"buyRules"`
		SellRules rules.Group `json:"sellRules"`
		Sizing    string      `json:"sizingMode"`
	}{
		BuyRules:  bot.BuyRules,
		SellRules: bot.SellRules,
		Sizing:    bot.SizingMode,
	})
	if err != nil {
		return models.Bot{}, fmt.Errorf("snapshot config: %w", err)
	}
	if err := w.backtests.SetConfigSnapshot(ctx, bt.ID, string(snapshot)); err != nil {
		return models.Bot{}, err
	}
	return bot, nil
}

// wait holds the workflow for a bounded artificial delay to smooth load
// on the archive. The delay scales with the window length and is capped
// by MaxWait; cancelling the workflow is the only way to interrupt it.
func (w *Workflow) wait(ctx context.Context, bt models.Backtest) error {
	if w.cfg.MaxWait <= 0 {
		return nil
	}
	delay := bt.WindowEnd.Sub(bt.WindowStart) / (24 * 60)
	if delay > w.cfg.MaxWait {
		delay = w.cfg.MaxWait
	}
	if delay <= 0 {
		return nil
	}
	return w.sleep(ctx, delay)
}

// writeReport persists the report blob and flips the metadata record to
// completed. Overwrites an existing blob under the same key.
func (w *Workflow) writeReport(ctx context.Context, bt models.Backtest, report *backtest.Report) error {
	key := backtest.ReportKey(bt.ID)
	if err := w.reports.PutJSON(ctx, key, report); err != nil {
		return err
	}
	return w.backtests.Complete(ctx, bt.ID, key)
}

// fail is the single terminal failure handler shared by every stage.
func (w *Workflow) fail(bt models.Backtest, cause error) {
	metrics.Backtests.WithLabelValues("failed").Inc()
	w.logger.Error("Backtest failed", "backtest", bt.ID, "error", cause)

	// The parent context may already be cancelled or expired; the
	// terminal write still has to land.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.backtests.Fail(ctx, bt.ID, cause.Error()); err != nil {
		w.logger.Error("Recording backtest failure failed", "backtest", bt.ID, "error", err)
	}
	if w.publisher != nil {
		if err := w.publisher.PublishEvent(ctx, events.NewBacktestFailed(bt.ID, cause.Error())); err != nil {
			w.logger.Warn("Backtest event publish failed", "backtest", bt.ID, "error", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
