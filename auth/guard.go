package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/resilience"
)

// Guard authenticates HTTP requests before they reach an MCP handler.
type Guard struct {
	auth    Authenticator
	limiter *resilience.KeyedRateLimiter
	lockout *Lockout
	logger  observe.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRateLimiter limits requests per authenticated principal.
func WithRateLimiter(rl *resilience.KeyedRateLimiter) GuardOption {
	return func(g *Guard) { g.limiter = rl }
}

// WithLockout blocks addresses with repeated failures.
func WithLockout(l *Lockout) GuardOption {
	return func(g *Guard) { g.lockout = l }
}

// WithGuardLogger sets the logger for rejected requests.
func WithGuardLogger(l observe.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuard returns a Guard. A nil authenticator admits every request as
// the anonymous identity.
func NewGuard(a Authenticator, opts ...GuardOption) *Guard {
	g := &Guard{auth: a, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wrap returns next guarded by authentication, lockout and rate limiting.
// Rejections are JSON bodies of the form {"error": "..."}.
func (g *Guard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		addr := clientAddr(r)

		if g.lockout != nil && g.lockout.Blocked(addr) {
			reject(w, http.StatusForbidden, ErrBlocked)
			return
		}

		id := AnonymousIdentity()
		if g.auth != nil {
			req := &AuthRequest{Headers: r.Header, RemoteAddr: addr}
			result, err := g.auth.Authenticate(ctx, req)
			if err != nil {
				g.logger.Error(ctx, "authentication error", observe.Field{Key: "error", Value: err})
				reject(w, http.StatusInternalServerError, errors.New("internal error"))
				return
			}
			if !result.Authenticated {
				if g.lockout != nil {
					g.lockout.Fail(addr)
				}
				g.logger.Warn(ctx, "authentication rejected",
					observe.Field{Key: "remote", Value: addr},
					observe.Field{Key: "method", Value: result.Method},
					observe.Field{Key: "reason", Value: result.Error},
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="erpgate"`)
				reject(w, http.StatusUnauthorized, result.Error)
				return
			}
			id = result.Identity
		}

		if g.limiter != nil && !g.limiter.Allow(id.Principal) {
			w.Header().Set("Retry-After", "60")
			reject(w, http.StatusTooManyRequests, ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func reject(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
