package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})

	if r.config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", r.config.MaxAttempts)
	}
	if r.config.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", r.config.InitialDelay)
	}
	if r.config.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", r.config.MaxDelay)
	}
	if r.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", r.config.Multiplier)
	}
}

func TestRetry_ExecuteCount(t *testing.T) {
	transient := errors.New("transient")

	tests := []struct {
		name         string
		maxAttempts  int
		failures     int
		wantAttempts int
		wantErr      bool
	}{
		{"first try", 4, 0, 1, false},
		{"three failures then success", 4, 3, 4, false},
		{"exhausted", 3, 10, 3, true},
		{"single attempt", 1, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{MaxAttempts: tt.maxAttempts, InitialDelay: time.Millisecond})

			calls := 0
			attempts, err := r.ExecuteCount(context.Background(), func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return transient
				}
				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("ExecuteCount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if calls != tt.wantAttempts {
				t.Errorf("calls = %d, want %d", calls, tt.wantAttempts)
			}
		})
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})
	cause := errors.New("bad request")

	attempts, err := r.ExecuteCount(context.Background(), func(ctx context.Context) error {
		return Permanent(cause)
	})

	if err != cause {
		t.Errorf("error = %v, want unwrapped cause", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_RetryIfFalse(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return false },
	})

	attempts, err := r.ExecuteCount(context.Background(), func(ctx context.Context) error {
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var seen []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			seen = append(seen, attempt)
		},
	})

	_ = r.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	if len(seen) != 3 {
		t.Fatalf("OnRetry calls = %d, want 3", len(seen))
	}
	for i, a := range seen {
		if a != i+1 {
			t.Errorf("OnRetry attempt[%d] = %d, want %d", i, a, i+1)
		}
	}
}

func TestRetry_ContextCancelledDuringWait(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	attempts, err := r.ExecuteCount(ctx, func(ctx context.Context) error {
		return errors.New("fail")
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("elapsed = %v, backoff wait was not aborted", elapsed)
	}
}

func TestRetry_Delay(t *testing.T) {
	tests := []struct {
		name    string
		config  RetryConfig
		attempt int
		want    time.Duration
	}{
		{"exponential first", RetryConfig{InitialDelay: 500 * time.Millisecond}, 1, 500 * time.Millisecond},
		{"exponential third", RetryConfig{InitialDelay: 500 * time.Millisecond}, 3, 2 * time.Second},
		{"capped", RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second}, 5, 3 * time.Second},
		{"linear", RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffLinear}, 3, 300 * time.Millisecond},
		{"constant", RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffConstant}, 7, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRetry(tt.config).Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetry_JitterBounds(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 100 * time.Millisecond, Jitter: true})
	for i := 0; i < 50; i++ {
		d := r.Delay(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("Delay(1) with jitter = %v, want within [100ms, 125ms)", d)
		}
	}
}
