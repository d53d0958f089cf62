package auth

import (
	"sync"
	"time"
)

// Lockout blocks client addresses after repeated authentication failures
// inside a sliding window.
type Lockout struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

// NewLockout blocks an address after max failures within window. A max of
// zero disables blocking.
func NewLockout(max int, window time.Duration) *Lockout {
	return &Lockout{
		failures: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Fail records a failed attempt from addr.
func (l *Lockout) Fail(addr string) {
	if l.max <= 0 || addr == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.failures[addr] = append(l.recentLocked(addr, now), now)
}

// Blocked reports whether addr has reached the failure limit.
func (l *Lockout) Blocked(addr string) bool {
	if l.max <= 0 || addr == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	recent := l.recentLocked(addr, l.now())
	if len(recent) == 0 {
		delete(l.failures, addr)
		return false
	}
	l.failures[addr] = recent
	return len(recent) >= l.max
}

// Blocking returns the number of addresses currently blocked.
func (l *Lockout) Blocking() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	now := l.now()
	for addr := range l.failures {
		if len(l.recentLocked(addr, now)) >= l.max && l.max > 0 {
			n++
		}
	}
	return n
}

func (l *Lockout) recentLocked(addr string, now time.Time) []time.Time {
	times := l.failures[addr]
	cut := 0
	for cut < len(times) && now.Sub(times[cut]) >= l.window {
		cut++
	}
	return times[cut:]
}
