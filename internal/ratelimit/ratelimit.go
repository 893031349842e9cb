package ratelimit

import (
	"sync"
	"time"

	"github.com/relayhub/relay-gateway/internal/metrics"
)

// Window is a fixed-window request counter for one key
type Window struct {
	Count   int
	ResetAt time.Time
}

// Limiter enforces per-key fixed-window request budgets.
// A window is replaced, never decremented, once it expires; bursts of up
// to twice the budget are possible across a window boundary.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*Window
	now     func() time.Time
}

// New creates a new Limiter
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*Window),
		now:     time.Now,
	}
}

// Allow reports whether a request under key fits within max requests per
// window, counting this request if it does. Denials do not mutate the window.
func (l *Limiter) Allow(key string, max int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.ResetAt) {
		l.windows[key] = &Window{Count: 1, ResetAt: now.Add(window)}
		return true
	}
	if w.Count < max {
		w.Count++
		return true
	}
	metrics.RateLimitDenials.WithLabelValues(key).Inc()
	return false
}

// Reset drops the window for key
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Sweep drops all expired windows and returns how many were removed
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if now.After(w.ResetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
