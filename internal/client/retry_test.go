package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryWithBackoff_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(5), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
		calls++
		return &APIError{Status: http.StatusBadGateway, Code: "bad_gateway", Message: fmt.Sprintf("attempt %d", calls)}
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "attempt 3" {
		t.Fatalf("expected last attempt error, got %q", apiErr.Message)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ClientErrorsAreFinal(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(4), func() error {
			calls++
			return &APIError{Status: status}
		})
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if calls != 1 {
			t.Fatalf("status %d: expected a single attempt, got %d", status, calls)
		}
	}
}

func TestRetryWithBackoff_TooManyRequestsIsRetried(t *testing.T) {
	calls := 0
	_ = RetryWithBackoff(context.Background(), fastRetry(2), func() error {
		calls++
		return &APIError{Status: http.StatusTooManyRequests}
	})
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2}
	calls := 0
	started := time.Now()
	err := RetryWithBackoff(ctx, cfg, func() error {
		calls++
		cancel()
		return fmt.Errorf("i/o timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if time.Since(started) > 500*time.Millisecond {
		t.Fatal("cancellation should interrupt the backoff wait")
	}
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryWithBackoff(context.Background(), RetryConfig{}, func() error {
		calls++
		return fmt.Errorf("timeout")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), true},
		{"refused", fmt.Errorf("dial tcp: connection refused"), true},
		{"server error", &APIError{Status: http.StatusServiceUnavailable}, true},
		{"not found", &APIError{Status: http.StatusNotFound}, false},
		{"decode", fmt.Errorf("invalid character '<' looking for beginning of value"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientError(tt.err); got != tt.want {
				t.Fatalf("isTransientError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
