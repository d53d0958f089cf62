package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/erpgate/toolerr"
)

// ExecuteFunc is the signature of a tool call that Middleware wraps.
type ExecuteFunc func(ctx context.Context, meta CallMeta, args map[string]any) (any, error)

// Middleware wraps tool calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a function safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - Ownership: arguments and results pass through untouched; arguments are never logged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Wrap wraps fn with a span, call metrics and one completion log line.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta CallMeta, args map[string]any) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx, meta, args)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordCall(ctx, meta, duration, err)

		fields := append(meta.Fields(), Field{Key: "duration_ms", Value: duration.Milliseconds()})
		if err == nil {
			m.logger.Info(ctx, "tool call completed", fields...)
			return result, nil
		}

		fields = append(fields, Field{Key: "error", Value: err})
		if te, ok := toolerr.As(err); ok {
			fields = append(fields, Field{Key: "error_kind", Value: string(te.Kind)})
			if te.Kind == toolerr.KindValidation || te.Kind == toolerr.KindNotFound {
				m.logger.Warn(ctx, "tool call rejected", fields...)
				return result, err
			}
		}
		m.logger.Error(ctx, "tool call failed", fields...)
		return result, err
	}
}

// MiddlewareFromObserver builds a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, Metrics, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), metrics, nil
}
