package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantfold/rulebot/configs"
	"github.com/quantfold/rulebot/internal/backtest"
	"github.com/quantfold/rulebot/internal/events"
	"github.com/quantfold/rulebot/internal/history"
	"github.com/quantfold/rulebot/internal/metrics"
	"github.com/quantfold/rulebot/internal/objectstore"
	"github.com/quantfold/rulebot/internal/repository"
	"github.com/quantfold/rulebot/internal/store"
	"github.com/quantfold/rulebot/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := configs.AppLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	db, err := repository.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	archive, err := history.NewClickHouseArchive(cfg.ClickHouseDSN)
	if err != nil {
		logger.Error("Failed to connect to candle archive", "error", err)
		os.Exit(1)
	}

	publisher := events.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.IndicatorTopic, cfg.Kafka.DomainTopic)
	defer publisher.Close()

	engine := backtest.NewEngine(
		backtest.EngineConfig{
			Interval:        cfg.Feed.Interval,
			WindowSize:      cfg.Feed.WindowSize,
			DefaultNotional: cfg.Backtest.DefaultNotional,
		},
		archive, logger,
	)

	svc := workflow.New(
		workflow.Config{
			PollInterval: cfg.Backtest.PollInterval,
			Timeout:      cfg.Backtest.WorkflowTimeout,
			MaxWait:      cfg.Backtest.MaxWait,
		},
		repository.NewBacktestRepository(db),
		repository.NewBotRepository(db),
		engine,
		objectstore.NewRedis(redisClient),
		publisher,
		logger,
	)

	go metrics.Serve(ctx, cfg.MetricsAddr, logger)

	logger.Info("Backtester started successfully")

	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Backtester stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Backtester shutdown complete")
}
