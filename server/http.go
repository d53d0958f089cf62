package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/erpgate/auth"
	"github.com/jonwraymond/erpgate/cache"
	"github.com/jonwraymond/erpgate/health"
	"github.com/jonwraymond/erpgate/observe"
)

// EndpointPath is where the streamable MCP endpoint is mounted.
const EndpointPath = "/mcp"

// RequestIDHeader carries a caller-chosen correlation id.
const RequestIDHeader = "X-Request-ID"

// HTTPOptions assembles the HTTP mux.
type HTTPOptions struct {
	// Guard protects /mcp. Nil leaves it open.
	Guard *auth.Guard

	// Health backs /readyz and /health. Nil serves an empty aggregator.
	Health *health.Aggregator

	// Cache supplies the /stats counters. Nil reports the cache disabled.
	Cache *cache.Manager

	// Lockout adds blocked-address counts to /stats.
	Lockout *auth.Lockout

	// Metrics serves /metrics. Default: promhttp.Handler().
	Metrics http.Handler

	// AllowOrigin enables CORS on /mcp for the given origin, e.g. "*".
	AllowOrigin string
}

// Stats is the /stats response.
type Stats struct {
	Service       string      `json:"service"`
	Version       string      `json:"version"`
	Tools         int         `json:"tools"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Cache         cache.Stats `json:"cache"`
	BlockedAddrs  int         `json:"blocked_addresses"`
}

// Handler returns the HTTP mux: the MCP endpoint plus operational routes.
func (s *Server) Handler(o HTTPOptions) http.Handler {
	if o.Health == nil {
		o.Health = health.NewAggregator()
	}
	if o.Metrics == nil {
		o.Metrics = promhttp.Handler()
	}

	streamable := mcpserver.NewStreamableHTTPServer(s.mcp,
		mcpserver.WithEndpointPath(EndpointPath),
		mcpserver.WithHTTPContextFunc(withRequestID),
	)
	var endpoint http.Handler = streamable
	if o.Guard != nil {
		endpoint = o.Guard.Wrap(endpoint)
	}
	endpoint = cors(o.AllowOrigin, endpoint)

	mux := http.NewServeMux()
	mux.Handle(EndpointPath, endpoint)
	health.RegisterHandlers(mux, o.Health)
	mux.Handle("GET /metrics", o.Metrics)
	mux.HandleFunc("GET /stats", s.statsHandler(o, time.Now()))
	return mux
}

func (s *Server) statsHandler(o HTTPOptions, started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := Stats{
			Service:       s.name,
			Version:       s.version,
			Tools:         s.registry.Len(),
			UptimeSeconds: int64(time.Since(started).Seconds()),
		}
		if o.Cache != nil {
			st.Cache = o.Cache.Stats()
		}
		if o.Lockout != nil {
			st.BlockedAddrs = o.Lockout.Blocking()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	}
}

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// withRequestID adopts a well-formed X-Request-ID as the correlation id.
func withRequestID(ctx context.Context, r *http.Request) context.Context {
	if id := r.Header.Get(RequestIDHeader); requestIDPattern.MatchString(id) {
		return observe.WithCorrelationID(ctx, id)
	}
	return ctx
}

func cors(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept, Mcp-Session-Id, "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves h on addr until ctx is done, then shuts down
// gracefully within grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, h http.Handler, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "serving mcp over http",
			observe.Field{Key: "addr", Value: addr},
			observe.Field{Key: "endpoint", Value: EndpointPath},
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	s.logger.Info(ctx, "shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
