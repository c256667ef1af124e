package common

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryableFunc is one attempt of an operation. The context passed in is the
// caller's context, so attempts observe cancellation.
type RetryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	retryIf      func(error) bool
}

// Option configures Do.
type Option func(*retryConfig)

// WithMaxRetries sets the number of retries after the first attempt. Default 3.
func WithMaxRetries(n int) Option {
	return func(c *retryConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry. Default 1s.
func WithInitialDelay(d time.Duration) Option {
	return func(c *retryConfig) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff delay. Default 30s.
func WithMaxDelay(d time.Duration) Option {
	return func(c *retryConfig) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor. Default 2.0.
func WithMultiplier(m float64) Option {
	return func(c *retryConfig) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithRetryIf limits retries to errors the predicate accepts. Errors it rejects
// are returned immediately.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *retryConfig) {
		if fn != nil {
			c.retryIf = fn
		}
	}
}

func defaultRetryConfig() *retryConfig {
	return &retryConfig{
		maxRetries:   3,
		initialDelay: time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		retryIf:      func(error) bool { return true },
	}
}

// Do runs fn until it succeeds, the retry budget is spent, the predicate
// rejects an error, or ctx is done. Delays grow exponentially from the initial
// delay and are capped at the max delay.
//
//	err := common.Do(ctx, func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	}, common.WithMaxRetries(5))
func Do(ctx context.Context, fn RetryableFunc, opts ...Option) error {
	if fn == nil {
		return errors.New("retry: function cannot be nil")
	}

	cfg := defaultRetryConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	lastErr := fn(ctx)
	if lastErr == nil {
		return nil
	}

	for attempt := 1; attempt <= cfg.maxRetries; attempt++ {
		if !cfg.retryIf(lastErr) {
			return lastErr
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted (attempt %d/%d): %w", attempt, cfg.maxRetries, ctx.Err())
		case <-timer.C:
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.maxRetries+1, lastErr)
}

// backoff returns initialDelay * multiplier^(attempt-1), capped at maxDelay.
func backoff(attempt int, cfg *retryConfig) time.Duration {
	delay := float64(cfg.initialDelay) * math.Pow(cfg.multiplier, float64(attempt-1))
	if delay > float64(cfg.maxDelay) {
		return cfg.maxDelay
	}
	return time.Duration(delay)
}
