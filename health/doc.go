// Package health reports whether erpgate can serve tool calls.
//
// Two checks matter: the cache store round-trip and a backend status call.
// A failing cache store only degrades the service, because reads fall back
// to the backend; a failing backend makes it unhealthy.
//
//	agg := health.NewAggregator()
//	agg.Register(health.CacheChecker(manager))
//	agg.Register(health.BackendChecker(conn))
//	health.RegisterHandlers(mux, agg)
//
// The handlers serve /healthz (liveness), /readyz (readiness) and /health
// (per-check JSON).
package health
