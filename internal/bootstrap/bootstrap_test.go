package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"plumbing_backend/platform/logger"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logger.Nop(), "flaky", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	err := WithRetry(context.Background(), logger.Nop(), "always", 2, time.Millisecond, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := WithRetry(ctx, logger.Nop(), "cancelled", 5, time.Millisecond, func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("expected immediate cancel, got err=%v calls=%d", err, calls)
	}
}

func TestWithRetryRejectsZeroAttempts(t *testing.T) {
	if err := WithRetry(context.Background(), logger.Nop(), "none", 0, time.Millisecond, func() error { return nil }); err == nil {
		t.Fatalf("expected error")
	}
}
