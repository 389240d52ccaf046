package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry_RetriesRetryableThenSucceeds(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Timeout: time.Second}
	err := WithRetry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(KindUpstream, "flaky", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), DefaultRetryConfig(), func(ctx context.Context) error {
		attempts++
		return Validation("bad input")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt for non-retryable error, got %d", attempts)
	}
}

func TestWithRetry_PlainErrorNotRetried(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), DefaultRetryConfig(), func(ctx context.Context) error {
		attempts++
		return errors.New("untyped failure")
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected single attempt, got attempts=%d err=%v", attempts, err)
	}
}
