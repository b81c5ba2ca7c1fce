package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        40 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		if callCount < 3 {
			return &FetchError{ErrorClass: ErrorClassServer, StatusCode: 503}
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		return &FetchError{ErrorClass: ErrorClassNetwork}
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if classOf(err) != ErrorClassNetwork {
		t.Errorf("exhausted error should still expose the last FetchError, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_NonRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "client error", err: &FetchError{ErrorClass: ErrorClassClient, StatusCode: 404}},
		{name: "parse error", err: &FetchError{ErrorClass: ErrorClassParse}},
		{name: "rate limited", err: &RateLimitedError{FetchError: &FetchError{ErrorClass: ErrorClassRateLimit}, After: time.Second}},
		{name: "unclassified", err: errors.New("plain")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callCount := 0
			err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
				callCount++
				return tt.err
			})

			if err != tt.err {
				t.Errorf("Expected original error, got %v", err)
			}
			if callCount != 1 {
				t.Errorf("Expected 1 call, got %d", callCount)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	config := fastRetryConfig()
	config.InitialBackoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := retryWithBackoff(ctx, config, zerolog.Nop(), func() error {
		return &FetchError{ErrorClass: ErrorClassServer}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected wrapped context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Retry did not stop promptly on cancel: %v", elapsed)
	}
}

func TestRetryWithBackoff_MaxBackoffCap(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 10,
	}

	start := time.Now()
	_ = retryWithBackoff(context.Background(), config, zerolog.Nop(), func() error {
		return &FetchError{ErrorClass: ErrorClassServer}
	})

	// 3 waits of at most 24ms each (20ms + 20% jitter)
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("backoff not capped: total %v", elapsed)
	}
}
