package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeout_Expires(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})

	err := to.Execute(context.Background(), func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
}

func TestTimeout_OpHonorsDeadline(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})

	err := to.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
}

func TestTimeout_ParentCancellation(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := to.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestTimeout_PassesThroughResult(t *testing.T) {
	want := errors.New("store error")
	err := NewTimeout(TimeoutConfig{Timeout: time.Second}).Execute(context.Background(), func(ctx context.Context) error {
		return want
	})
	if err != want {
		t.Errorf("Execute() error = %v, want %v", err, want)
	}
}
