package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, WithAttempts(5), WithInitialDelay(5*time.Millisecond))

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestDo_AttemptsExhausted(t *testing.T) {
	t.Parallel()
	attempts := 0
	persistent := errors.New("503 service unavailable")
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return persistent
	}, WithAttempts(3), WithInitialDelay(time.Millisecond))

	if !errors.Is(err, persistent) {
		t.Errorf("Expected wrapped persistent error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()
	attempts := 0
	_ = Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("boom")
	}, WithAttempts(0))

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_FatalStopsImmediately(t *testing.T) {
	t.Parallel()
	attempts := 0
	notFound := errors.New("404 not found")
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return Fatal(notFound)
	}, WithAttempts(5), WithInitialDelay(time.Millisecond))

	if !IsFatal(err) {
		t.Errorf("Expected fatal error, got: %v", err)
	}
	if !errors.Is(err, notFound) {
		t.Errorf("Expected wrapped 404 error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()
	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(context.Context) error {
		attempts++
		return errors.New("error")
	}, WithInitialDelay(time.Second))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before context check, got: %d", attempts)
	}
}

func TestDo_MaxDelayCapsBackoff(t *testing.T) {
	t.Parallel()
	start := time.Now()
	_ = Do(context.Background(), func(context.Context) error {
		return errors.New("error")
	}, WithAttempts(4), WithInitialDelay(10*time.Millisecond), WithMultiplier(10), WithMaxDelay(20*time.Millisecond))

	// 10ms + 20ms + 20ms with the cap, 10ms + 100ms + 1s without it.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected capped backoff, took %v", elapsed)
	}
}

func TestFatal(t *testing.T) {
	t.Parallel()
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) should be nil")
	}
	if IsFatal(errors.New("plain")) {
		t.Error("plain error should not be fatal")
	}
	fatal := Fatal(errors.New("bad request"))
	if fatal.Error() != "bad request" {
		t.Errorf("unexpected message %q", fatal.Error())
	}
}
