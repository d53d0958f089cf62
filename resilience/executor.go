package resilience

import (
	"context"
	"time"
)

// Executor composes resilience patterns around a single operation.
//
// Layers are applied outermost first:
// rate limiter, bulkhead, circuit breaker, retry, timeout.
// The timeout therefore bounds each attempt rather than the whole retry loop.
type Executor struct {
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter adds rate limiting.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds concurrency isolation.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retries.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds each attempt. A non-positive duration leaves attempts
// unbounded.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
		}
	}
}

// Execute runs op through all configured layers.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	type layer func(context.Context, func(context.Context) error) error

	var layers []layer
	if e.rateLimiter != nil {
		layers = append(layers, e.rateLimiter.Execute)
	}
	if e.bulkhead != nil {
		layers = append(layers, e.bulkhead.Execute)
	}
	if e.circuitBreaker != nil {
		layers = append(layers, e.circuitBreaker.Execute)
	}
	if e.retry != nil {
		layers = append(layers, e.retry.Execute)
	}
	if e.timeout != nil {
		layers = append(layers, e.timeout.Execute)
	}

	run := op
	for i := len(layers) - 1; i >= 0; i-- {
		outer, inner := layers[i], run
		run = func(ctx context.Context) error { return outer(ctx, inner) }
	}
	return run(ctx)
}
