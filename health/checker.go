package health

import (
	"context"
	"time"
)

// Status is ordered by severity; the aggregate is the worst status seen.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded still serves traffic, e.g. reads bypassing a dead cache.
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is one check's answer for /readyz.
type Result struct {
	Status  Status
	Message string
	// Details carries counters such as cache hits or the backend error kind.
	Details map[string]any
	Error   error

	// Duration and Timestamp are filled in by the aggregator when the
	// check leaves them unset.
	Duration  time.Duration
	Timestamp time.Time
}

func newResult(s Status, message string, err error) Result {
	return Result{Status: s, Message: message, Error: err, Timestamp: time.Now()}
}

func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

func Degraded(message string, err error) Result { return newResult(StatusDegraded, message, err) }

func Unhealthy(message string, err error) Result { return newResult(StatusUnhealthy, message, err) }

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker reports on one dependency: the cache store or the ERP backend.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

type checkerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc names fn as a Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) Checker {
	return checkerFunc{name: name, fn: fn}
}

func (f checkerFunc) Name() string { return f.name }

func (f checkerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
