package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/quantfold/rulebot/configs"
	"github.com/quantfold/rulebot/internal/events"
	"github.com/quantfold/rulebot/internal/feed"
	"github.com/quantfold/rulebot/internal/history"
	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/metrics"
	"github.com/quantfold/rulebot/internal/retry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := configs.AppLoad()

	archive, err := history.NewClickHouseArchive(cfg.ClickHouseDSN)
	if err != nil {
		logger.Error("Failed to connect to candle archive", "error", err)
		os.Exit(1)
	}

	client := market.NewBinanceClient(
		os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"),
		cfg.Feed.RequestsPerSecond)
	cache := market.NewPriceCache(cfg.Feed.PriceTTL)

	publisher := events.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.IndicatorTopic, cfg.Kafka.DomainTopic)
	defer publisher.Close()

	retryer := retry.New(retry.DefaultConfig("market-data"), logrus.StandardLogger())

	svc := feed.New(
		feed.Config{
			Symbols:      cfg.Feed.Symbols,
			Interval:     cfg.Feed.Interval,
			WindowSize:   cfg.Feed.WindowSize,
			PollInterval: cfg.Feed.PollInterval,
		},
		client, cache, archive, publisher, retryer, logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go metrics.Serve(ctx, cfg.MetricsAddr, logger)

	stream := market.NewTickerStream(cfg.Feed.Symbols, cache, logger)
	go stream.Run(ctx)

	logger.Info("Feed started successfully")

	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Feed stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Feed shutdown complete")
}
