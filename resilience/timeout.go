package resilience

import (
	"context"
	"errors"
	"time"
)

type TimeoutConfig struct {
	// Timeout bounds one call. Default: 30 seconds.
	Timeout time.Duration
}

// Timeout bounds calls that may ignore their context. A bbolt write
// waiting on the file lock is the usual case.
type Timeout struct {
	d time.Duration
}

func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{d: config.Timeout}
}

// Execute runs op with a derived deadline and returns as soon as either op
// finishes or the deadline passes. ErrTimeout is returned only when this
// wrapper's own deadline fired; a parent deadline or cancellation surfaces
// as the parent's ctx.Err().
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(opCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrTimeout
		}
		return err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTimeout
	}
}
