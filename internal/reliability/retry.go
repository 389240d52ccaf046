package reliability

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig tunes withRetry. Zero values fall back to the defaults named in
// spec.md §4.I: 3 attempts, 200ms base backoff, 10s cap, 30s per-attempt
// timeout.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

// DefaultRetryConfig returns spec.md §4.I's withRetry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// FromTuning builds a RetryConfig from the reliability tuning knobs in
// config.ReliabilityConfig (MaxRetries/BaseBackoffMS/MaxBackoffMS), keeping
// the default per-attempt timeout since the config struct doesn't carry one.
func FromTuning(maxRetries, baseBackoffMS, maxBackoffMS int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries > 0 {
		cfg.MaxAttempts = maxRetries
	}
	if baseBackoffMS > 0 {
		cfg.BaseDelay = time.Duration(baseBackoffMS) * time.Millisecond
	}
	if maxBackoffMS > 0 {
		cfg.MaxDelay = time.Duration(maxBackoffMS) * time.Millisecond
	}
	return cfg
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// backoffDelay computes delay = min(base*2^(attempt-1), max) +/- 10% jitter,
// attempt is 1-indexed.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > cfg.MaxDelay {
			d = cfg.MaxDelay
			break
		}
	}
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	jitter := float64(d) * 0.10
	delta := (rand.Float64()*2 - 1) * jitter
	d = time.Duration(float64(d) + delta)
	if d < 0 {
		d = 0
	}
	return d
}

// Op is a unit of work withRetry wraps with a per-attempt timeout.
type Op func(ctx context.Context) error

// WithRetry runs op up to cfg.MaxAttempts times, retrying only errors the
// taxonomy marks Retryable. Each attempt is wrapped in cfg.Timeout; a timed
// out attempt is surfaced as a retryable KindTimeout error.
func WithRetry(ctx context.Context, cfg RetryConfig, op Op) error {
	cfg = cfg.normalized()
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		err := op(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = New(KindTimeout, "operation timed out", err)
		}
		lastErr = err
		if !IsRetryable(err) || attempt == cfg.MaxAttempts {
			return err
		}
		delay := backoffDelay(cfg, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
