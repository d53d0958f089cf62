package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonwraymond/erpgate/toolerr"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere totals the data points of an int64 counter whose attributes
// include every pair in want.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s data = %T, want Sum[int64]", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			v, ok := dp.Attributes.Value(kv.Key)
			if !ok || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_RecordCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := CallMeta{Tool: "get_invoice", Entity: "invoices", Kind: "read"}

	m.RecordCall(ctx, meta, 10*time.Millisecond, nil)
	m.RecordCall(ctx, meta, 20*time.Millisecond, toolerr.NotFound("invoices", "9"))

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "erpgate.tool.calls", attribute.String("tool.name", "get_invoice")); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "erpgate.tool.errors", attribute.String("error.kind", "not_found")); got != 1 {
		t.Errorf("not_found errors = %d, want 1", got)
	}

	hist := findMetric(rm, "erpgate.tool.duration_ms")
	if hist == nil {
		t.Fatal("duration histogram missing")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok || len(data.DataPoints) == 0 || data.DataPoints[0].Count != 2 {
		t.Errorf("duration histogram = %#v, want 2 samples", hist.Data)
	}
}

func TestMetrics_CacheAndBackend(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCache(ctx, "invoices", CacheHit)
	m.RecordCache(ctx, "invoices", CacheMiss)
	m.RecordCache(ctx, "invoices", CacheDegraded)
	m.RecordCache(ctx, "products", CacheHit)
	m.RecordInvalidation(ctx, "customers", 4)
	m.RecordBackend(ctx, "GET", 503, time.Millisecond)
	m.RecordBackend(ctx, "GET", 0, time.Millisecond)
	m.RecordRetry(ctx, "GET")

	rm := collect(t, reader)
	tests := []struct {
		metric string
		attrs  []attribute.KeyValue
		want   int64
	}{
		{"erpgate.cache.lookups", []attribute.KeyValue{attribute.String("cache.outcome", "hit")}, 2},
		{"erpgate.cache.lookups", []attribute.KeyValue{attribute.String("tool.entity", "invoices")}, 3},
		{"erpgate.cache.lookups", []attribute.KeyValue{attribute.String("cache.outcome", "degraded")}, 1},
		{"erpgate.cache.invalidated", []attribute.KeyValue{attribute.String("tool.entity", "customers")}, 4},
		{"erpgate.backend.requests", []attribute.KeyValue{attribute.String("http.response.status_code", "503")}, 1},
		{"erpgate.backend.requests", []attribute.KeyValue{attribute.String("http.response.status_code", "none")}, 1},
		{"erpgate.backend.retries", nil, 1},
	}
	for _, tt := range tests {
		if got := sumWhere(t, rm, tt.metric, tt.attrs...); got != tt.want {
			t.Errorf("%s%v = %d, want %d", tt.metric, tt.attrs, got, tt.want)
		}
	}
}
