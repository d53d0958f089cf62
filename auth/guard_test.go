package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonwraymond/erpgate/resilience"
)

func guarded(g *Guard) http.Handler {
	return g.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(PrincipalFromContext(r.Context())))
	}))
}

func do(h http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGuard_Authentication(t *testing.T) {
	h := guarded(NewGuard(NewAPIKeyAuthenticator([]string{"k1"})))

	rr := do(h, "Bearer k1")
	if rr.Code != http.StatusOK || rr.Body.String() != "key-"+HashAPIKey("k1")[:8] {
		t.Errorf("valid key: status %d body %q", rr.Code, rr.Body.String())
	}

	rr = do(h, "Bearer wrong")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("invalid key: status = %d, want 401", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["error"] != ErrInvalidCredentials.Error() {
		t.Errorf("body = %s", rr.Body.String())
	}

	if rr = do(h, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rr.Code)
	}
}

func TestGuard_Anonymous(t *testing.T) {
	rr := do(guarded(NewGuard(nil)), "")
	if rr.Code != http.StatusOK || rr.Body.String() != "anonymous" {
		t.Errorf("status %d body %q, want anonymous", rr.Code, rr.Body.String())
	}
}

func TestGuard_RateLimit(t *testing.T) {
	rl := resilience.NewKeyedRateLimiter(resilience.PerMinute(2), time.Minute)
	h := guarded(NewGuard(NewAPIKeyAuthenticator([]string{"k1", "k2"}), WithRateLimiter(rl)))

	for i := 0; i < 2; i++ {
		if rr := do(h, "Bearer k1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rr.Code)
		}
	}
	rr := do(h, "Bearer k1")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("third request: status = %d, want 429 with Retry-After", rr.Code)
	}
	if rr := do(h, "Bearer k2"); rr.Code != http.StatusOK {
		t.Errorf("other principal: status = %d, want 200", rr.Code)
	}
}

func TestGuard_Lockout(t *testing.T) {
	lock := NewLockout(3, time.Hour)
	h := guarded(NewGuard(NewAPIKeyAuthenticator([]string{"k1"}), WithLockout(lock)))

	for i := 0; i < 3; i++ {
		if rr := do(h, "Bearer wrong"); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d", i, rr.Code)
		}
	}
	if rr := do(h, "Bearer k1"); rr.Code != http.StatusForbidden {
		t.Errorf("blocked address: status = %d, want 403", rr.Code)
	}
	if lock.Blocking() != 1 {
		t.Errorf("Blocking() = %d, want 1", lock.Blocking())
	}
}

func TestLockout_Window(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLockout(2, time.Minute)
	l.now = func() time.Time { return now }

	l.Fail("a")
	now = now.Add(30 * time.Second)
	l.Fail("a")
	if !l.Blocked("a") {
		t.Fatal("Blocked() = false after 2 failures")
	}
	now = now.Add(31 * time.Second)
	if l.Blocked("a") {
		t.Error("Blocked() = true after the first failure left the window")
	}
	if l.Blocked("b") {
		t.Error("Blocked(b) = true")
	}

	off := NewLockout(0, time.Minute)
	off.Fail("a")
	if off.Blocked("a") {
		t.Error("disabled lockout blocked")
	}
}
