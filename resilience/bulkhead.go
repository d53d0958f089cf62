package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

type BulkheadConfig struct {
	// MaxConcurrent caps in-flight calls. Default: 10.
	MaxConcurrent int

	// MaxWait is how long Acquire queues for a slot. Zero rejects at once.
	MaxWait time.Duration
}

// Bulkhead caps in-flight requests to the ERP so a burst of tool calls
// queues here instead of piling onto the backend.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	active   atomic.Int64
	rejected atomic.Int64
}

func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot, waiting up to MaxWait. It returns ErrBulkheadFull
// when no slot frees up in time and ctx.Err() when ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		b.active.Add(1)
		return nil
	default:
	}

	if b.config.MaxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		b.active.Add(1)
		return nil
	case <-timer.C:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
		b.active.Add(-1)
	default:
	}
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// InFlight reports how many slots are held.
func (b *Bulkhead) InFlight() int { return int(b.active.Load()) }

// Rejected reports how many calls gave up waiting for a slot.
func (b *Bulkhead) Rejected() int64 { return b.rejected.Load() }
