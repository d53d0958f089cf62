package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of operations allowed per second.
	// Default: 100
	Rate float64

	// Burst is the maximum burst size.
	// Default: 10
	Burst int

	// WaitOnLimit waits for a token instead of returning an error.
	WaitOnLimit bool

	// MaxWait is the maximum time to wait for a token.
	// Default: 1 second
	MaxWait time.Duration
}

// PerMinute returns a config admitting n operations per minute with a burst of n.
func PerMinute(n int) RateLimiterConfig {
	if n <= 0 {
		n = 1
	}
	return RateLimiterConfig{Rate: float64(n) / 60, Burst: n}
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.Rate <= 0 {
		c.Rate = 100
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
	return c
}

// RateLimiter implements a token bucket.
type RateLimiter struct {
	config RateLimiterConfig

	mu          sync.Mutex
	tokens      float64
	lastRefresh time.Time
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	config = config.withDefaults()
	return &RateLimiter{
		config:      config,
		tokens:      float64(config.Burst),
		lastRefresh: time.Now(),
	}
}

// Allow takes one token if available.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN takes n tokens if available.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(time.Now())
	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until a token is available, MaxWait elapses, or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rl.Allow() {
		return nil
	}

	rl.mu.Lock()
	wait := time.Duration((1 - rl.tokens) / rl.config.Rate * float64(time.Second))
	rl.mu.Unlock()
	if wait > rl.config.MaxWait {
		wait = rl.config.MaxWait
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if rl.Allow() {
			return nil
		}
		return ErrRateLimitExceeded
	}
}

// Execute runs op if the limiter admits it.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	return rl.tokens
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefresh)
	rl.lastRefresh = now
	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}

// KeyedRateLimiter keeps one token bucket per key, such as an API key
// principal. Buckets idle for longer than IdleTTL are dropped lazily.
type KeyedRateLimiter struct {
	config  RateLimiterConfig
	idleTTL time.Duration

	mu       sync.Mutex
	limiters map[string]*keyedBucket
	lastGC   time.Time
}

type keyedBucket struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewKeyedRateLimiter creates a per-key limiter. idleTTL defaults to 10 minutes.
func NewKeyedRateLimiter(config RateLimiterConfig, idleTTL time.Duration) *KeyedRateLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedRateLimiter{
		config:   config.withDefaults(),
		idleTTL:  idleTTL,
		limiters: make(map[string]*keyedBucket),
		lastGC:   time.Now(),
	}
}

// Allow takes one token from key's bucket.
func (k *KeyedRateLimiter) Allow(key string) bool {
	now := time.Now()

	k.mu.Lock()
	if now.Sub(k.lastGC) > k.idleTTL {
		for name, b := range k.limiters {
			if now.Sub(b.lastSeen) > k.idleTTL {
				delete(k.limiters, name)
			}
		}
		k.lastGC = now
	}
	b, ok := k.limiters[key]
	if !ok {
		b = &keyedBucket{limiter: NewRateLimiter(k.config)}
		k.limiters[key] = b
	}
	b.lastSeen = now
	k.mu.Unlock()

	return b.limiter.Allow()
}

// Len returns the number of tracked keys.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
