package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantfold/rulebot/configs"
	"github.com/quantfold/rulebot/internal/events"
	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/metrics"
	"github.com/quantfold/rulebot/internal/recorder"
	"github.com/quantfold/rulebot/internal/repository"
	"github.com/quantfold/rulebot/internal/store"
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

	client := market.NewBinanceClient(
		os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"),
		cfg.Feed.RequestsPerSecond)
	cache := market.NewPriceCache(cfg.Feed.PriceTTL)
	prices := market.NewCachedPrices(cache, client)

	publisher := events.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.IndicatorTopic, cfg.Kafka.DomainTopic)
	defer publisher.Close()

	svc := recorder.New(
		recorder.Config{
			Interval:    cfg.Recorder.Interval,
			Concurrency: cfg.Recorder.Concurrency,
			SnapshotTTL: cfg.Recorder.SnapshotTTL,
			PageSize:    cfg.Recorder.PageSize,
		},
		repository.NewBotRepository(db),
		store.NewRedis(redisClient),
		prices,
		publisher,
		logger,
	)

	go metrics.Serve(ctx, cfg.MetricsAddr, logger)

	logger.Info("Recorder started successfully")

	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Recorder stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Recorder shutdown complete")
}
