package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() beyond burst = true, want false")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 1})

	if !rl.Allow() {
		t.Fatal("first Allow() = false")
	}
	time.Sleep(5 * time.Millisecond)
	if !rl.Allow() {
		t.Error("Allow() after refill = false, want true")
	}
}

func TestRateLimiter_ExecuteRejects(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	op := func(ctx context.Context) error { return nil }

	if err := rl.Execute(context.Background(), op); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	if err := rl.Execute(context.Background(), op); !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("second Execute() error = %v, want ErrRateLimitExceeded", err)
	}
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1, MaxWait: time.Hour})
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute(120)
	if cfg.Burst != 120 {
		t.Errorf("Burst = %d, want 120", cfg.Burst)
	}
	if cfg.Rate != 2 {
		t.Errorf("Rate = %v, want 2", cfg.Rate)
	}
}

func TestKeyedRateLimiter_IsolatesKeys(t *testing.T) {
	k := NewKeyedRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1}, time.Hour)

	if !k.Allow("alice") {
		t.Fatal("alice first Allow() = false")
	}
	if k.Allow("alice") {
		t.Error("alice second Allow() = true, want false")
	}
	if !k.Allow("bob") {
		t.Error("bob Allow() = false, want true")
	}
	if k.Len() != 2 {
		t.Errorf("Len() = %d, want 2", k.Len())
	}
}
