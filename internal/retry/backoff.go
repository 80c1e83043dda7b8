// Package retry runs connect attempts with exponential backoff inside a
// bounded budget.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config contains configuration for exponential backoff.
type Config struct {
	MaxRetries    int           // Retries after the first attempt (0 = single attempt)
	RetryDelay    time.Duration // Initial retry delay
	MaxRetryDelay time.Duration // Maximum retry delay cap
}

// DefaultConfig returns the backoff used for stream connects.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    2,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 2 * time.Second,
	}
}

// AttemptFunc performs one attempt. attempt starts at 1.
type AttemptFunc func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, returns an error that retryable rejects,
// exhausts cfg.MaxRetries, or ctx ends.
//
// A retry is skipped when its backoff delay would outlive the ctx deadline:
// the last attempt's error is returned instead of sleeping into a timeout.
//
// Backoff schedule: delay = RetryDelay * 2^(n-1), capped at MaxRetryDelay.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn AttemptFunc) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				slog.Debug("retry: attempt succeeded", "attempt", attempt)
			}
			return nil
		}

		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt > cfg.MaxRetries {
			if cfg.MaxRetries > 0 {
				return fmt.Errorf("max retries exceeded (%d attempts): %w", attempt, err)
			}
			return err
		}

		delay := Backoff(attempt, cfg)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
			return err
		}

		slog.Debug("retry: attempt failed, backing off",
			"attempt", attempt,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
	}
}

// Backoff returns the delay before retry number attempt (1-based).
//
// Example with RetryDelay=500ms, MaxRetryDelay=2s:
//   - Attempt 1: 500ms
//   - Attempt 2: 1s
//   - Attempt 3: 2s
//   - Attempt 4: 2s (capped)
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		return cfg.MaxRetryDelay
	}

	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
