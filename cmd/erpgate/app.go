package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonwraymond/erpgate/auth"
	"github.com/jonwraymond/erpgate/cache"
	"github.com/jonwraymond/erpgate/config"
	"github.com/jonwraymond/erpgate/connector"
	"github.com/jonwraymond/erpgate/dispatch"
	"github.com/jonwraymond/erpgate/encode"
	"github.com/jonwraymond/erpgate/health"
	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/registry"
	"github.com/jonwraymond/erpgate/resilience"
	"github.com/jonwraymond/erpgate/server"
)

const (
	lockoutFailures = 20
	lockoutWindow   = time.Hour
)

// app holds the assembled components and what must be released on exit.
type app struct {
	cfg       config.Config
	observer  observe.Observer
	logger    observe.Logger
	cache     *cache.Manager
	connector *connector.Connector
	server    *server.Server
}

func build(ctx context.Context, cfg config.Config, stderr io.Writer) (*app, error) {
	ocfg := cfg.Observe()
	ocfg.Version = version
	ocfg.Output = stderr
	obs, err := observe.NewObserver(ctx, ocfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	mw, metrics, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	logger := obs.Logger()

	store, err := openStore(cfg.Cache)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	cm := cache.NewManager(store, cfg.Policy(),
		cache.WithKeyer(cache.NewKeyer(cfg.Cache.Prefix)),
		cache.WithOpTimeout(cfg.Cache.OpTimeout),
		cache.WithCoalescing(cfg.Cache.Coalesce),
		cache.WithLoadTimeout(loadTimeout(cfg.Backend)),
		cache.WithDisabled(!cfg.Cache.Enabled),
		cache.WithLogger(logger),
		cache.WithMetrics(metrics),
	)

	backend, err := connector.NewHTTPBackend(cfg.HTTP())
	if err != nil {
		_ = cm.Close()
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("backend: %w", err)
	}
	conn := connector.New(backend, cfg.Connector(),
		connector.WithLogger(logger),
		connector.WithMetrics(metrics),
	)

	reg := registry.Default()
	d := dispatch.New(reg, cm, conn, encode.NewEncoder(cfg.Format()),
		dispatch.WithMiddleware(mw),
		dispatch.WithLogger(logger),
	)
	srv, err := server.New(reg, d, server.WithLogger(logger), server.WithVersion(version))
	if err != nil {
		_ = cm.Close()
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	logger.Info(ctx, "erpgate ready",
		observe.Field{Key: "version", Value: version},
		observe.Field{Key: "tools", Value: reg.Len()},
		observe.Field{Key: "transport", Value: cfg.Server.Transport},
		observe.Field{Key: "cache_store", Value: cfg.Cache.Store},
		observe.Field{Key: "format", Value: string(cfg.Format())},
	)
	return &app{
		cfg:       cfg,
		observer:  obs,
		logger:    logger,
		cache:     cm,
		connector: conn,
		server:    srv,
	}, nil
}

// loadTimeout covers every attempt of one backend call and the waits
// between them.
func loadTimeout(b config.BackendConfig) time.Duration {
	n := time.Duration(b.MaxRetries)
	return b.Timeout*(n+1) + b.MaxBackoff*n
}

func openStore(cfg config.CacheConfig) (cache.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Store {
	case config.StoreBolt:
		s, err := cache.OpenBolt(cfg.Path, cache.BoltOptions{})
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		return s, nil
	default:
		return cache.NewMemoryStore(), nil
	}
}

func (a *app) httpOptions() server.HTTPOptions {
	agg := health.NewAggregator()
	agg.Register(health.CacheChecker(a.cache), health.BackendChecker(a.connector))

	o := server.HTTPOptions{
		Health:      agg,
		Cache:       a.cache,
		AllowOrigin: "*",
	}
	if !a.cfg.Server.AuthEnabled {
		a.logger.Warn(context.Background(), "http transport running without authentication")
		return o
	}

	authenticators := []auth.Authenticator{auth.NewAPIKeyAuthenticator(a.cfg.Server.APIKeys)}
	if a.cfg.Server.JWTSecret != "" {
		authenticators = append(authenticators, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(a.cfg.Server.JWTSecret),
			Issuer:   a.cfg.Server.JWTIssuer,
			Audience: a.cfg.Server.JWTAudience,
			Leeway:   30 * time.Second,
		}))
	}
	lockout := auth.NewLockout(lockoutFailures, lockoutWindow)
	guardOpts := []auth.GuardOption{auth.WithLockout(lockout), auth.WithGuardLogger(a.logger)}
	if n := a.cfg.Server.RateLimitPerMinute; n > 0 {
		guardOpts = append(guardOpts, auth.WithRateLimiter(
			resilience.NewKeyedRateLimiter(resilience.PerMinute(n), 0)))
	}
	o.Lockout = lockout
	o.Guard = auth.NewGuard(auth.NewCompositeAuthenticator(authenticators...), guardOpts...)
	return o
}

func (a *app) serveHTTP(ctx context.Context) error {
	h := a.server.Handler(a.httpOptions())
	return a.server.ListenAndServe(ctx, a.cfg.Server.Addr, h, a.cfg.Server.ShutdownTimeout)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	if err := a.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := a.observer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error(ctx, "shutdown incomplete", observe.Field{Key: "error", Value: err})
	}
}
