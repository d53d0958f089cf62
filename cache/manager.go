package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/resilience"
)

// Stats is a snapshot of cache counters. All counters only grow.
type Stats struct {
	Enabled     bool    `json:"enabled"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Degraded    int64   `json:"degraded"`
	Invalidated int64   `json:"invalidated"`
	HitRate     float64 `json:"hit_rate"`
	Circuit     string  `json:"circuit"`

	// Rejected counts store calls the open circuit turned away.
	Rejected int64 `json:"circuit_rejected"`
}

// LoadFunc produces a value on a miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Manager is the read-through, invalidate-on-write cache.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: store failures never reach the caller. Get turns them into a
//     miss; Set and Invalidate turn them into no-ops. Each is counted as a
//     degraded event, at most once per request context (see WithRequest).
//     A caller whose own context ended is never counted as degraded and
//     never counts against the circuit breaker.
//   - Context: every store call runs under its own timeout derived from
//     the caller's context. A coalesced load runs detached from any single
//     caller, bounded by the load timeout.
type Manager struct {
	store    Store
	keyer    Keyer
	policy   Policy
	disabled bool
	coalesce bool

	loadTimeout time.Duration

	timeout *resilience.Timeout
	breaker *resilience.CircuitBreaker
	group   singleflight.Group

	logger  observe.Logger
	metrics observe.Metrics

	hits        atomic.Int64
	misses      atomic.Int64
	degraded    atomic.Int64
	invalidated atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeyer replaces the default Keyer.
func WithKeyer(k Keyer) Option {
	return func(m *Manager) { m.keyer = k }
}

// WithOpTimeout bounds each store call. Default: 250ms.
func WithOpTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = resilience.NewTimeout(resilience.TimeoutConfig{Timeout: d})
		}
	}
}

// WithCircuitBreaker replaces the breaker guarding the store.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(m *Manager) {
		if cb != nil {
			m.breaker = cb
		}
	}
}

// WithCoalescing collapses concurrent misses for one key into a single load.
func WithCoalescing(enabled bool) Option {
	return func(m *Manager) { m.coalesce = enabled }
}

// WithLoadTimeout bounds a coalesced load shared by several callers.
// Default: 30s.
func WithLoadTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.loadTimeout = d
		}
	}
}

// WithDisabled turns every operation into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Manager) { m.disabled = disabled }
}

// WithLogger sets the logger for degraded events.
func WithLogger(l observe.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics mirrors counters into m.
func WithMetrics(mt observe.Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// NewManager builds a Manager over store. A nil store disables caching.
func NewManager(store Store, policy Policy, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		keyer:   NewKeyer(""),
		policy:  policy,
		timeout: resilience.NewTimeout(resilience.TimeoutConfig{Timeout: 250 * time.Millisecond}),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 10 * time.Second,
			IsFailure:    storeFailure,
		}),
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),

		loadTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	if store == nil {
		m.disabled = true
	}
	return m
}

// storeFailure ignores the caller giving up; only the store's own errors
// count against the breaker. The op timeout firing surfaces as
// resilience.ErrTimeout and still counts.
func storeFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Enabled reports whether results are cached at all.
func (m *Manager) Enabled() bool { return !m.disabled }

// Policy returns the freshness table.
func (m *Manager) Policy() Policy { return m.policy }

// Cacheable reports whether entries for entity have a positive TTL.
func (m *Manager) Cacheable(entity string) bool {
	return m.Enabled() && m.policy.TTL(entity) > 0
}

// Key derives the key for one logical request.
func (m *Manager) Key(entity, operation string, scope Scope, args map[string]any) (string, error) {
	return m.keyer.Key(entity, operation, scope, args)
}

// Get returns the live value under key. entity labels statistics.
func (m *Manager) Get(ctx context.Context, entity, key string) ([]byte, bool) {
	if m.disabled {
		return nil, false
	}

	var (
		value []byte
		found bool
	)
	err := m.do(ctx, func(ctx context.Context) error {
		var err error
		value, found, err = m.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			m.markDegraded(ctx, "get", entity, err)
		}
		m.misses.Add(1)
		m.metrics.RecordCache(ctx, entity, observe.CacheMiss)
		return nil, false
	}
	if !found {
		m.misses.Add(1)
		m.metrics.RecordCache(ctx, entity, observe.CacheMiss)
		return nil, false
	}
	m.hits.Add(1)
	m.metrics.RecordCache(ctx, entity, observe.CacheHit)
	return value, true
}

// Set stores value under key with entity's TTL. Nothing is stored when the
// context is already done, so an aborted request never commits a write.
func (m *Manager) Set(ctx context.Context, entity, key string, value []byte) {
	ttl := m.policy.TTL(entity)
	if m.disabled || ttl <= 0 || ctx.Err() != nil {
		return
	}
	err := m.do(ctx, func(ctx context.Context) error {
		return m.store.Set(ctx, key, value, ttl)
	})
	if err != nil && ctx.Err() == nil {
		m.markDegraded(ctx, "set", entity, err)
	}
}

// Fetch returns the cached value under key or calls load and caches its
// result. hit reports whether the value came from the cache. Load errors
// are returned unchanged and never cached.
func (m *Manager) Fetch(ctx context.Context, entity, key string, load LoadFunc) (value []byte, hit bool, err error) {
	if v, ok := m.Get(ctx, entity, key); ok {
		return v, true, nil
	}
	if !m.coalesce || m.disabled {
		return m.loadAndSet(ctx, entity, key, load)
	}

	// The shared load belongs to no single caller: it keeps the leader's
	// values but not its cancellation. Each waiter honors its own context.
	ch := m.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
		defer cancel()
		v, _, err := m.loadAndSet(lctx, entity, key, load)
		return v, err
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (m *Manager) loadAndSet(ctx context.Context, entity, key string, load LoadFunc) ([]byte, bool, error) {
	v, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	m.Set(ctx, entity, key, v)
	return v, false, nil
}

// Invalidate purges every entry of entity and of each dependent declared in
// the policy, scoped aggregate groups included. It returns the number of
// keys removed. Store failures are counted as degraded and skipped.
func (m *Manager) Invalidate(ctx context.Context, entity string) int {
	if m.disabled {
		return 0
	}
	total := 0
	for _, e := range m.policy.Cascade(entity) {
		n := 0
		for _, prefix := range m.keyer.EntityPrefixes(e) {
			var removed int
			err := m.do(ctx, func(ctx context.Context) error {
				var err error
				removed, err = m.store.DeletePrefix(ctx, prefix)
				return err
			})
			if err != nil {
				if ctx.Err() == nil {
					m.markDegraded(ctx, "invalidate", e, err)
				}
				continue
			}
			n += removed
		}
		if n > 0 {
			m.metrics.RecordInvalidation(ctx, e, n)
		}
		total += n
	}
	m.invalidated.Add(int64(total))
	m.logger.Debug(ctx, "cache invalidated",
		observe.Field{Key: "entity", Value: entity},
		observe.Field{Key: "keys", Value: total},
	)
	return total
}

// InvalidateScope purges one aggregate group, for example every cached
// invoice list of a single customer.
func (m *Manager) InvalidateScope(ctx context.Context, entity string, scope Scope) int {
	if m.disabled || scope.IsZero() {
		return 0
	}
	var removed int
	err := m.do(ctx, func(ctx context.Context) error {
		var err error
		removed, err = m.store.DeletePrefix(ctx, m.keyer.ScopePrefix(entity, scope))
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			m.markDegraded(ctx, "invalidate", entity, err)
		}
		return 0
	}
	m.invalidated.Add(int64(removed))
	if removed > 0 {
		m.metrics.RecordInvalidation(ctx, entity, removed)
	}
	return removed
}

// Ping round-trips a sentinel entry through the store.
func (m *Manager) Ping(ctx context.Context) error {
	if m.disabled {
		return nil
	}
	key := m.keyer.Prefix() + ":_ping"
	return m.timeout.Execute(ctx, func(ctx context.Context) error {
		if err := m.store.Set(ctx, key, []byte("1"), time.Second); err != nil {
			return err
		}
		if _, _, err := m.store.Get(ctx, key); err != nil {
			return err
		}
		return m.store.Delete(ctx, key)
	})
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	s := Stats{
		Enabled:     !m.disabled,
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Degraded:    m.degraded.Load(),
		Invalidated: m.invalidated.Load(),
	}
	cm := m.breaker.Metrics()
	s.Circuit = cm.State.String()
	s.Rejected = cm.Rejected
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Close closes the store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// do runs op under the breaker and the op timeout. When the caller's own
// context ends first the outcome says nothing about the store, so the
// breaker slot is released without recording it.
func (m *Manager) do(ctx context.Context, op func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.breaker.Allow(); err != nil {
		return err
	}
	err := m.timeout.Execute(ctx, op)
	if err != nil && ctx.Err() != nil {
		m.breaker.Release()
		return err
	}
	m.breaker.Record(err)
	return err
}

func (m *Manager) markDegraded(ctx context.Context, op, entity string, err error) {
	if st, ok := ctx.Value(requestKey{}).(*requestState); ok && !st.degraded.CompareAndSwap(false, true) {
		return
	}
	m.degraded.Add(1)
	m.metrics.RecordCache(ctx, entity, observe.CacheDegraded)
	m.logger.Warn(ctx, "cache degraded",
		observe.Field{Key: "op", Value: op},
		observe.Field{Key: "entity", Value: entity},
		observe.Field{Key: "error", Value: err},
	)
}

type requestKey struct{}

type requestState struct {
	degraded atomic.Bool
}

// WithRequest marks ctx as one request so that any number of store
// failures during it count as a single degraded event.
func WithRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestKey{}, &requestState{})
}
