package pagination

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/tweetfilter/pkg/client"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func temporaryErr() error {
	return &client.FetchError{Kind: client.KindBadStatus, StatusCode: http.StatusBadGateway, Reason: "Bad Gateway"}
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

func TestNoRetry(t *testing.T) {
	if got := NoRetry().MaxAttempts; got != 1 {
		t.Errorf("MaxAttempts = %d, want 1", got)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), zerolog.Nop(), func() error {
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
	err := retryWithBackoff(context.Background(), fastRetry(3), zerolog.Nop(), func() error {
		callCount++
		if callCount < 3 {
			return temporaryErr()
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

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), zerolog.Nop(), func() error {
		callCount++
		return temporaryErr()
	})

	if !errors.Is(err, client.ErrBadStatus) {
		t.Errorf("Expected last bad status error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_PermanentErrorNoRetry(t *testing.T) {
	callCount := 0
	testErr := errors.New("decode failed")
	err := retryWithBackoff(context.Background(), fastRetry(3), zerolog.Nop(), func() error {
		callCount++
		return testErr
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for permanent errors), got %d", callCount)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_SingleAttempt(t *testing.T) {
	callCount := 0
	_ = retryWithBackoff(context.Background(), NoRetry(), zerolog.Nop(), func() error {
		callCount++
		return temporaryErr()
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastRetry(5)
	cfg.InitialBackoff = time.Minute
	cfg.MaxBackoff = time.Minute

	callCount := 0
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		callCount++
		cancel()
		return temporaryErr()
	})

	if !errors.Is(err, client.ErrBadStatus) {
		t.Errorf("Expected wrapped last error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}
