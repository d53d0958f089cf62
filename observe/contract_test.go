package observe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNopLogger_With(t *testing.T) {
	l := NopLogger()
	if l.With(Field{Key: "k", Value: 1}) == nil {
		t.Fatal("With() returned nil")
	}
	l.Error(context.Background(), "ignored", Field{Key: "error", Value: errors.New("x")})
}

func TestNopMetrics_NoPanic(t *testing.T) {
	m := NopMetrics()
	ctx := context.Background()
	m.RecordCall(ctx, CallMeta{Tool: "noop"}, time.Millisecond, errors.New("x"))
	m.RecordCache(ctx, "invoices", CacheHit)
	m.RecordInvalidation(ctx, "invoices", 3)
	m.RecordBackend(ctx, "GET", 0, time.Millisecond)
	m.RecordRetry(ctx, "GET")
}

func TestNewTracer_NilIsNoop(t *testing.T) {
	tr := NewTracer(nil)
	_, span := tr.StartSpan(context.Background(), CallMeta{Tool: "noop"})
	tr.EndSpan(span, nil)
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Errorf("CorrelationID(empty) = %q, want empty", got)
	}
	ctx = WithCorrelationID(ctx, "abc")
	if got := CorrelationID(ctx); got != "abc" {
		t.Errorf("CorrelationID() = %q, want abc", got)
	}
}
