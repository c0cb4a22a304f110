// Package retry provides retry with exponential backoff and jitter for
// transient upstream failures (market-data fetches, store round trips).
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds retry behavior for one named operation class.
type Config struct {
	MaxAttempts int           // Maximum number of attempts
	BaseDelay   time.Duration // Base delay for exponential backoff
	MaxDelay    time.Duration // Maximum delay between attempts
	Multiplier  float64       // Multiplier for exponential backoff
	JitterRange float64       // Jitter range (0.0 to 1.0)
	Name        string        // Name for logging
}

// DefaultConfig returns a sensible default retry configuration.
func DefaultConfig(name string) Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		JitterRange: 0.1,
		Name:        name,
	}
}

// Func is an operation that can be retried.
type Func func() error

// Retryer executes functions with backoff between failed attempts.
type Retryer struct {
	config Config
	logger *logrus.Logger
	rng    *rand.Rand
}

// New creates a Retryer, normalizing out-of-range configuration values.
func New(config Config, logger *logrus.Logger) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.Multiplier <= 1.0 {
		config.Multiplier = 2.0
	}
	if config.JitterRange < 0 || config.JitterRange > 1.0 {
		config.JitterRange = 0.1
	}
	if config.Name == "" {
		config.Name = "retryer"
	}

	return &Retryer{
		config: config,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs fn until it succeeds, attempts are exhausted, or ctx is
// cancelled.
func (r *Retryer) Execute(ctx context.Context, fn Func) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Infof("[%s] operation succeeded on attempt %d", r.config.Name, attempt)
			}
			return nil
		}
		lastErr = err

		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delayFor(attempt)
		r.logger.Warnf("[%s] attempt %d/%d failed: %v (retrying in %v)",
			r.config.Name, attempt, r.config.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("[%s] all %d attempts failed: %w", r.config.Name, r.config.MaxAttempts, lastErr)
}

// delayFor computes the backoff delay for a completed attempt, with jitter.
func (r *Retryer) delayFor(attempt int) time.Duration {
	backoff := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if backoff > float64(r.config.MaxDelay) {
		backoff = float64(r.config.MaxDelay)
	}

	jitter := backoff * r.config.JitterRange * (2*r.rng.Float64() - 1)
	delay := time.Duration(backoff + jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}
