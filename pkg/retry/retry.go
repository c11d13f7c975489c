package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts  int           // Maximum number of retry attempts
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Exponential backoff multiplier (typically 2.0)
	OnRetry      func(attempt int, delay time.Duration, err error)
}

// DefaultConfig matches the signaling reconnect contract: 1s, 2s, 4s, 8s,
// 10s across five attempts, jitter-free.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Do executes fn, retrying with exponential backoff until it succeeds,
// the attempt budget is exhausted or the context is cancelled. The first
// call does not count as an attempt.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		delay := Delay(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		if err = fn(); err == nil {
			return nil
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
}

// Delay returns the backoff delay preceding the given 1-based attempt:
// initialDelay * multiplier^(attempt-1), capped at MaxDelay.
func Delay(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// Delays returns the full delay schedule for the configured attempt budget.
func Delays(cfg Config) []time.Duration {
	out := make([]time.Duration, cfg.MaxAttempts)
	for i := range out {
		out[i] = Delay(cfg, i+1)
	}
	return out
}
