package connector

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/resilience"
	"github.com/jonwraymond/erpgate/toolerr"
)

// Config configures a Connector.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3. Negative disables retries.
	MaxRetries int

	// BaseDelay is the wait before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxBackoff caps a single wait. Default: 10s.
	MaxBackoff time.Duration

	// Jitter adds up to 25% random delay to each wait.
	Jitter bool

	// AttemptTimeout bounds one HTTP attempt. Zero leaves attempts bounded
	// only by the caller's context.
	AttemptTimeout time.Duration

	// MaxConcurrent limits in-flight backend calls. Zero means unlimited.
	MaxConcurrent int

	// RatePerSecond throttles calls to the backend. Zero means unlimited.
	RatePerSecond float64
}

// Request is one logical backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte

	// Entity and ID label not_found errors and logs.
	Entity string
	ID     string
}

// IsWrite reports whether the call may have side effects on the backend.
func (r Request) IsWrite() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// Connector is the only path to the backend. It retries transient failures,
// decodes gzip by sniffing, and normalizes every failure into a
// *toolerr.Error.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: cancellation aborts the in-flight attempt and any pending
//     backoff wait; the result is a connection timeout error.
//   - Errors: Call returns nil or a *toolerr.Error, never anything else.
type Connector struct {
	backend  Backend
	retry    *resilience.Retry
	guard    *resilience.Executor
	bulkhead *resilience.Bulkhead
	attempt  time.Duration
	logger   observe.Logger
	metrics  observe.Metrics
	maxRetry int
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(c *Connector) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New returns a Connector over backend.
func New(backend Backend, cfg Config, opts ...Option) *Connector {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	var (
		limiter  *resilience.RateLimiter
		bulkhead *resilience.Bulkhead
	)
	if cfg.RatePerSecond > 0 {
		limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        cfg.RatePerSecond,
			Burst:       max(1, int(cfg.RatePerSecond)),
			WaitOnLimit: true,
		})
	}
	if cfg.MaxConcurrent > 0 {
		bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       5 * time.Second,
		})
	}

	c := &Connector{
		backend: backend,
		retry: resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.MaxRetries + 1,
			InitialDelay: cfg.BaseDelay,
			MaxDelay:     cfg.MaxBackoff,
			Multiplier:   2,
			Jitter:       cfg.Jitter,
		}),
		bulkhead: bulkhead,
		attempt:  cfg.AttemptTimeout,
		logger:   observe.NopLogger(),
		metrics:  observe.NopMetrics(),
		maxRetry: cfg.MaxRetries,
	}
	var guards []resilience.ExecutorOption
	if limiter != nil {
		guards = append(guards, resilience.WithRateLimiter(limiter))
	}
	if bulkhead != nil {
		guards = append(guards, resilience.WithBulkhead(bulkhead))
	}
	c.guard = resilience.NewExecutor(guards...)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reports requests holding a concurrency slot and those that gave up
// waiting for one. Both are zero when concurrency is unbounded.
func (c *Connector) Load() (inFlight int, rejected int64) {
	if c.bulkhead == nil {
		return 0, 0
	}
	return c.bulkhead.InFlight(), c.bulkhead.Rejected()
}

// statusFailure carries a non-2xx response out of the retry loop.
type statusFailure struct {
	resp *RawResponse
}

func (s *statusFailure) Error() string {
	return "backend status " + http.StatusText(s.resp.StatusCode)
}

// Call performs req and returns the decoded JSON body.
func (c *Connector) Call(ctx context.Context, req Request) ([]byte, error) {
	var (
		result   *RawResponse
		attempts int
	)
	write := req.IsWrite()

	err := c.guard.Execute(ctx, func(ctx context.Context) error {
		n, err := c.retry.ExecuteCount(ctx, func(ctx context.Context) error {
			attempt := attempts + 1
			attempts = attempt
			if attempt > 1 {
				c.metrics.RecordRetry(ctx, req.Method)
			}
			resp, err := c.once(ctx, req, attempt)
			if err != nil {
				if write && !unsent(err) {
					return resilience.Permanent(err)
				}
				if ctx.Err() != nil {
					return resilience.Permanent(err)
				}
				return err
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				result = resp
				return nil
			}
			failure := &statusFailure{resp: resp}
			if write || !retriableStatus(resp.StatusCode) {
				return resilience.Permanent(failure)
			}
			return failure
		})
		attempts = n
		return err
	})
	if err != nil {
		return nil, c.normalize(ctx, req, err, attempts)
	}

	body, err := decodeBody(result.Body)
	if err != nil {
		te := stamp(ctx, toolerr.Upstream(result.StatusCode, false, attempts))
		c.logger.Error(ctx, "backend returned an unreadable payload",
			observe.Field{Key: "method", Value: req.Method},
			observe.Field{Key: "path", Value: req.Path},
			observe.Field{Key: "status", Value: result.StatusCode},
			observe.Field{Key: "correlation_id", Value: te.CorrelationID},
			observe.Field{Key: "error", Value: err},
		)
		return nil, te
	}
	return body, nil
}

// once performs a single attempt under the attempt timeout.
func (c *Connector) once(ctx context.Context, req Request, attempt int) (*RawResponse, error) {
	if c.attempt > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.attempt)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.backend.Execute(ctx, req.Method, req.Path, req.Query, req.Body)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.metrics.RecordBackend(ctx, req.Method, status, elapsed)

	fields := []observe.Field{
		{Key: "method", Value: req.Method},
		{Key: "path", Value: req.Path},
		{Key: "attempt", Value: attempt},
		{Key: "status", Value: status},
		{Key: "duration_ms", Value: elapsed.Milliseconds()},
	}
	switch {
	case err != nil:
		c.logger.Warn(ctx, "backend attempt failed", append(fields, observe.Field{Key: "error", Value: err})...)
	case status >= 500:
		c.logger.Warn(ctx, "backend server error", append(fields, observe.Field{Key: "body", Value: truncate(resp.Body, 500)})...)
	default:
		c.logger.Debug(ctx, "backend call", fields...)
	}
	return resp, err
}

// normalize maps the terminal error of a call onto exactly one kind.
func (c *Connector) normalize(ctx context.Context, req Request, err error, attempts int) *toolerr.Error {
	if te, ok := toolerr.As(err); ok {
		return te
	}

	var te *toolerr.Error
	var sf *statusFailure
	switch {
	case ctx.Err() != nil:
		te = toolerr.Connection(true, attempts)
	case errors.As(err, &sf):
		te = statusError(sf.resp, req.Entity, req.ID, attempts)
	case errors.Is(err, resilience.ErrBulkheadFull), errors.Is(err, resilience.ErrRateLimitExceeded):
		te = toolerr.Connection(false, attempts)
		te.Message = "backend capacity exhausted"
	default:
		te = toolerr.Connection(isTimeout(err), attempts)
	}
	stamp(ctx, te)

	c.logger.Warn(ctx, "backend call failed",
		observe.Field{Key: "method", Value: req.Method},
		observe.Field{Key: "path", Value: req.Path},
		observe.Field{Key: "attempts", Value: attempts},
		observe.Field{Key: "kind", Value: string(te.Kind)},
		observe.Field{Key: "correlation_id", Value: te.CorrelationID},
		observe.Field{Key: "error", Value: err},
	)
	return te
}

// stamp reuses the request's correlation id so that operator logs and the
// caller-facing error agree.
func stamp(ctx context.Context, te *toolerr.Error) *toolerr.Error {
	if id := observe.CorrelationID(ctx); id != "" {
		te.CorrelationID = id
	}
	return te
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// MaxRetries returns the configured retry budget.
func (c *Connector) MaxRetries() int { return c.maxRetry }
