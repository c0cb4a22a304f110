// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// RedisAddr is the address of the Redis instance backing the KV store.
	RedisAddr string

	// RedisPassword is the Redis auth password ("" disables auth).
	RedisPassword string

	// PostgresDSN is the connection string for bot and backtest metadata.
	PostgresDSN string

	// ClickHouseDSN is the connection string for the candle history archive.
	ClickHouseDSN string

	// Kafka contains broker and topic settings for event publishing.
	Kafka KafkaConfig

	// Feed contains settings for the live market feed loop.
	Feed FeedConfig

	// Recorder contains settings for the performance recorder batch.
	Recorder RecorderConfig

	// Backtest contains settings for the backtest worker.
	Backtest BacktestConfig

	// MetricsAddr is the listen address for the Prometheus /metrics endpoint.
	MetricsAddr string
}

// KafkaConfig holds Kafka connection settings for event publishing.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// IndicatorTopic receives indicator update events.
	IndicatorTopic string

	// DomainTopic receives domain events (snapshots recorded, backtests finished).
	DomainTopic string
}

// FeedConfig holds settings for the live feed loop.
type FeedConfig struct {
	// Symbols is the list of trading pairs to track (comma-separated in env).
	Symbols []string

	// Interval is the candle interval requested from the exchange.
	Interval string

	// WindowSize is the rolling candle window length (>=200 for long-period indicators).
	WindowSize int

	// PollInterval is the delay between feed ticks per symbol.
	PollInterval time.Duration

	// RequestsPerSecond caps outgoing REST calls to the exchange.
	RequestsPerSecond float64

	// PriceTTL is how long a cached last-known price stays valid.
	PriceTTL time.Duration
}

// RecorderConfig holds settings for the performance recorder batch.
type RecorderConfig struct {
	// Interval is the delay between recording batches.
	Interval time.Duration

	// Concurrency bounds the number of in-flight subject lookups.
	Concurrency int

	// SnapshotTTL is the retention period applied to written snapshots.
	SnapshotTTL time.Duration

	// PageSize is the trade-tape page size for paginated store reads.
	PageSize int
}

// BacktestConfig holds settings for the backtest worker.
type BacktestConfig struct {
	// PollInterval is the delay between checks for pending backtests.
	PollInterval time.Duration

	// WorkflowTimeout bounds a single backtest workflow end to end.
	WorkflowTimeout time.Duration

	// MaxWait caps the artificial delay between validation and the engine run.
	MaxWait time.Duration

	// DefaultNotional is the simulated trade size when a bot has no sizing configured.
	DefaultNotional float64
}

// getPostgresDSN constructs the Postgres DSN from environment variables.
func getPostgresDSN() string {
	dbUser := getEnv("POSTGRES_USER", "rulebot")
	dbPassword := getEnv("POSTGRES_PASSWORD", "rulebot")
	dbHost := getEnv("POSTGRES_HOST", "localhost")
	dbPort := getEnv("POSTGRES_PORT", "5432")
	dbName := getEnv("POSTGRES_DB", "rulebot")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	return "host=" + dbHost + " port=" + dbPort + " user=" + dbUser +
		" password=" + dbPassword + " dbname=" + dbName + " sslmode=" + sslMode
}

// getClickHouseDSN constructs the ClickHouse DSN from environment variables.
func getClickHouseDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "user")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "password")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "rulebot")

	return "clickhouse://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort +
		"/" + dbName + "?dial_timeout=10s&read_timeout=20s"
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	var symbols []string
	if raw := getEnv("FEED_SYMBOLS", "BTCUSDT"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
	}

	return &AppConfig{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		PostgresDSN:   getPostgresDSN(),
		ClickHouseDSN: getClickHouseDSN(),
		Kafka: KafkaConfig{
			Broker:         getEnv("KAFKA_BROKER", "localhost:9092"),
			IndicatorTopic: getEnv("KAFKA_INDICATOR_TOPIC", "rulebot_indicators"),
			DomainTopic:    getEnv("KAFKA_DOMAIN_TOPIC", "rulebot_events"),
		},
		Feed: FeedConfig{
			Symbols:           symbols,
			Interval:          getEnv("FEED_INTERVAL", "1m"),
			WindowSize:        getEnvInt("FEED_WINDOW_SIZE", 250),
			PollInterval:      time.Duration(getEnvInt("FEED_POLL_SECONDS", 60)) * time.Second,
			RequestsPerSecond: getEnvFloat("FEED_REQUESTS_PER_SECOND", 5),
			PriceTTL:          time.Duration(getEnvInt("PRICE_TTL_SECONDS", 120)) * time.Second,
		},
		Recorder: RecorderConfig{
			Interval:    time.Duration(getEnvInt("RECORDER_INTERVAL_SECONDS", 300)) * time.Second,
			Concurrency: getEnvInt("RECORDER_CONCURRENCY", 25),
			SnapshotTTL: time.Duration(getEnvInt("SNAPSHOT_TTL_DAYS", 90)) * 24 * time.Hour,
			PageSize:    getEnvInt("RECORDER_PAGE_SIZE", 100),
		},
		Backtest: BacktestConfig{
			PollInterval:    time.Duration(getEnvInt("BACKTEST_POLL_SECONDS", 10)) * time.Second,
			WorkflowTimeout: time.Duration(getEnvInt("BACKTEST_TIMEOUT_SECONDS", 600)) * time.Second,
			MaxWait:         time.Duration(getEnvInt("BACKTEST_MAX_WAIT_SECONDS", 30)) * time.Second,
			DefaultNotional: getEnvFloat("BACKTEST_DEFAULT_NOTIONAL", 100),
		},
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
