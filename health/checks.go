package health

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonwraymond/erpgate/cache"
	"github.com/jonwraymond/erpgate/connector"
	"github.com/jonwraymond/erpgate/toolerr"
)

// CacheChecker round-trips a sentinel entry through the cache store. A
// failing store is reported as degraded.
func CacheChecker(m *cache.Manager) Checker {
	return NewCheckerFunc("cache", func(ctx context.Context) Result {
		stats := m.Stats()
		details := map[string]any{
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"degraded": stats.Degraded,
			"circuit":  stats.Circuit,
			"rejected": stats.Rejected,
		}
		if !m.Enabled() {
			return Healthy("cache disabled").WithDetails(details)
		}
		if err := m.Ping(ctx); err != nil {
			return Degraded("cache store unreachable, serving from backend", err).WithDetails(details)
		}
		return Healthy("cache store reachable").WithDetails(details)
	})
}

// Caller is satisfied by *connector.Connector.
type Caller interface {
	Call(ctx context.Context, req connector.Request) ([]byte, error)
}

type loader interface {
	Load() (inFlight int, rejected int64)
}

// BackendChecker calls the ERP status endpoint. When c also reports its
// load, the counters land in the result details.
func BackendChecker(c Caller) Checker {
	return NewCheckerFunc("backend", func(ctx context.Context) Result {
		details := map[string]any{}
		if l, ok := c.(loader); ok {
			details["in_flight"], details["rejected"] = l.Load()
		}
		_, err := c.Call(ctx, connector.Request{Method: http.MethodGet, Path: "status", Entity: "status"})
		if err == nil {
			return Healthy("backend reachable").WithDetails(details)
		}
		var te *toolerr.Error
		if errors.As(err, &te) {
			details["kind"] = string(te.Kind)
			details["retriable"] = te.Retriable
			return Unhealthy(te.Message, ErrBackendStatus).WithDetails(details)
		}
		return Unhealthy("backend unreachable", err).WithDetails(details)
	})
}
