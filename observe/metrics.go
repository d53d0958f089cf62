package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/erpgate/toolerr"
)

// CacheOutcome labels a cache lookup.
type CacheOutcome string

const (
	CacheHit      CacheOutcome = "hit"
	CacheMiss     CacheOutcome = "miss"
	CacheDegraded CacheOutcome = "degraded"
)

// Metrics records gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records a completed tool call.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordCache records one cache lookup outcome for an entity.
	RecordCache(ctx context.Context, entity string, outcome CacheOutcome)

	// RecordInvalidation records n keys purged for an entity.
	RecordInvalidation(ctx context.Context, entity string, n int)

	// RecordBackend records one backend HTTP attempt. status is 0 when no
	// response was received.
	RecordBackend(ctx context.Context, method string, status int, duration time.Duration)

	// RecordRetry records a retry scheduled by the connector.
	RecordRetry(ctx context.Context, method string)
}

type metricsImpl struct {
	calls        metric.Int64Counter
	callErrors   metric.Int64Counter
	callDuration metric.Float64Histogram
	cacheLookups metric.Int64Counter
	invalidated  metric.Int64Counter
	backendReqs  metric.Int64Counter
	backendDur   metric.Float64Histogram
	retries      metric.Int64Counter
}

// NewMetrics creates the gateway instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	var m metricsImpl
	var err error

	if m.calls, err = meter.Int64Counter("erpgate.tool.calls",
		metric.WithDescription("Tool calls dispatched"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.callErrors, err = meter.Int64Counter("erpgate.tool.errors",
		metric.WithDescription("Tool calls that returned an error"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.callDuration, err = meter.Float64Histogram("erpgate.tool.duration_ms",
		metric.WithDescription("Tool call duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter("erpgate.cache.lookups",
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, err
	}
	if m.invalidated, err = meter.Int64Counter("erpgate.cache.invalidated",
		metric.WithDescription("Cache keys purged by invalidation"),
		metric.WithUnit("{key}")); err != nil {
		return nil, err
	}
	if m.backendReqs, err = meter.Int64Counter("erpgate.backend.requests",
		metric.WithDescription("Backend HTTP attempts"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.backendDur, err = meter.Float64Histogram("erpgate.backend.duration_ms",
		metric.WithDescription("Backend HTTP attempt duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("erpgate.backend.retries",
		metric.WithDescription("Backend retries scheduled"),
		metric.WithUnit("{retry}")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)
	m.calls.Add(ctx, 1, opt)
	if err != nil {
		kind := string(toolerr.KindInternal)
		if te, ok := toolerr.As(err); ok {
			kind = string(te.Kind)
		}
		attrs := append(meta.attributes(), attribute.String("error.kind", kind))
		m.callErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.callDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCache(ctx context.Context, entity string, outcome CacheOutcome) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.entity", entity),
		attribute.String("cache.outcome", string(outcome)),
	))
}

func (m *metricsImpl) RecordInvalidation(ctx context.Context, entity string, n int) {
	m.invalidated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("tool.entity", entity)))
}

func (m *metricsImpl) RecordBackend(ctx context.Context, method string, status int, duration time.Duration) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	opt := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.response.status_code", code),
	)
	m.backendReqs.Add(ctx, 1, opt)
	m.backendDur.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRetry(ctx context.Context, method string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("http.request.method", method)))
}

type nopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordCall(context.Context, CallMeta, time.Duration, error) {}
func (nopMetrics) RecordCache(context.Context, string, CacheOutcome)          {}
func (nopMetrics) RecordInvalidation(context.Context, string, int)            {}
func (nopMetrics) RecordBackend(context.Context, string, int, time.Duration)  {}
func (nopMetrics) RecordRetry(context.Context, string)                        {}
