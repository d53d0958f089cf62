package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/erpgate/toolerr"
)

// CallMeta describes one tool invocation for telemetry purposes.
type CallMeta struct {
	Tool   string // registered tool name (required)
	Entity string // entity family, e.g. "invoices"
	Kind   string // read, write or delete
}

// SpanName returns the span name for this call: tool.call.<tool>.
func (m CallMeta) SpanName() string {
	return "tool.call." + m.Tool
}

// Fields returns the call metadata as log fields.
func (m CallMeta) Fields() []Field {
	fields := []Field{{Key: "tool", Value: m.Tool}}
	if m.Entity != "" {
		fields = append(fields, Field{Key: "entity", Value: m.Entity})
	}
	if m.Kind != "" {
		fields = append(fields, Field{Key: "kind", Value: m.Kind})
	}
	return fields
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("tool.name", m.Tool)}
	if m.Entity != "" {
		attrs = append(attrs, attribute.String("tool.entity", m.Entity))
	}
	if m.Kind != "" {
		attrs = append(attrs, attribute.String("tool.kind", m.Kind))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with per-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for a tool call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := meta.attributes()
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, attribute.String("correlation_id", id))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if te, ok := toolerr.As(err); ok {
			span.SetAttributes(attribute.String("error.kind", string(te.Kind)))
		}
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
