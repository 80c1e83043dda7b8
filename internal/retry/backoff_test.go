package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	cfg := Config{MaxRetries: 5, RetryDelay: 100 * time.Millisecond, MaxRetryDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{40, time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, cfg); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	cfg := Config{MaxRetries: 3, RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}

	calls := 0
	err := Do(context.Background(), cfg, nil, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	cfg := Config{MaxRetries: 5, RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond}
	fatal := errors.New("codec")

	calls := 0
	err := Do(context.Background(), cfg, func(err error) bool { return !errors.Is(err, fatal) },
		func(ctx context.Context, attempt int) error {
			calls++
			return fatal
		})
	if !errors.Is(err, fatal) {
		t.Fatalf("Do() error = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_MaxRetriesExceeded(t *testing.T) {
	cfg := Config{MaxRetries: 2, RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond}
	refused := errors.New("refused")

	calls := 0
	err := Do(context.Background(), cfg, nil, func(ctx context.Context, attempt int) error {
		calls++
		return refused
	})
	if !errors.Is(err, refused) {
		t.Fatalf("Do() error = %v, want wrapped %v", err, refused)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_SkipsRetryPastDeadline(t *testing.T) {
	cfg := Config{MaxRetries: 5, RetryDelay: time.Second, MaxRetryDelay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	calls := 0
	err := Do(ctx, cfg, nil, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("refused")
	})
	if err == nil {
		t.Fatal("Do() expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Do() slept into the deadline: %v", elapsed)
	}
}
