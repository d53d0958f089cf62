// Package resilience provides the failure-handling building blocks used around
// outbound calls: retry with backoff, circuit breaking, token-bucket rate
// limiting, bulkhead isolation and per-operation timeouts.
//
// The connector retries backend calls with Retry and bounds each attempt with
// an Executor carrying a Bulkhead and a Timeout. The cache manager guards its
// store with a CircuitBreaker and a Timeout so a dead store costs at most one
// short wait. The HTTP transport throttles each authenticated principal with
// a KeyedRateLimiter.
//
// # Usage
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  4,
//	    InitialDelay: 500 * time.Millisecond,
//	    RetryIf:      isTransient,
//	})
//
//	attempts, err := retry.ExecuteCount(ctx, func(ctx context.Context) error {
//	    if err := call(ctx); err != nil && !isTransient(err) {
//	        return resilience.Permanent(err)
//	    }
//	    return err
//	})
package resilience
