// Package attempt rate-limits credential submissions with a sliding window
// and a lockout cool-down. Every submission counts against the window,
// whether or not it later validates; the limiter reacts to attempt timing,
// not outcomes.
package attempt

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/store"
)

// Config holds the limiter policy.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	// Lockout is the cool-down applied when the window fills. Zero means
	// no lockout: the caller is simply throttled until the window slides.
	Lockout time.Duration
}

// window is the persisted limiter state. Attempts holds only timestamps
// inside the trailing window; pruning happens on every load.
type window struct {
	Attempts    []int64 `json:"attempts"` // unix milliseconds, ordered
	LockedUntil int64   `json:"locked_until,omitempty"`
}

// Limiter is a sliding-window attempt counter persisted in the short-lived
// store, so it survives re-initialization within a browsing session but
// not the session's end.
type Limiter struct {
	store *store.Store
	clk   clock.Clock
	key   string
	cfg   Config
	mu    sync.Mutex
}

// NewLimiter creates a Limiter persisting its window under key.
func NewLimiter(st *store.Store, clk clock.Clock, key string, cfg Config) *Limiter {
	return &Limiter{store: st, clk: clk, key: key, cfg: cfg}
}

// CanAttempt reports whether a new attempt is currently allowed. An active
// lockout refuses outright; an expired lockout is cleared along with the
// attempt window.
func (l *Limiter) CanAttempt() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, now := l.load()
	if w.LockedUntil > now {
		return false
	}
	if w.LockedUntil != 0 {
		// Lockout served; start from a clean window.
		w = window{}
		l.save(w)
	}
	return len(w.Attempts) < l.cfg.MaxAttempts
}

// RecordAttempt appends the current timestamp. Reaching the configured max
// inside the window arms the lockout.
func (l *Limiter) RecordAttempt() {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, now := l.load()
	w.Attempts = append(w.Attempts, now)
	if len(w.Attempts) >= l.cfg.MaxAttempts && l.cfg.Lockout > 0 && w.LockedUntil <= now {
		w.LockedUntil = now + l.cfg.Lockout.Milliseconds()
		log.Warn().
			Int("attempts", len(w.Attempts)).
			Dur("lockout", l.cfg.Lockout).
			Msg("Attempt limit reached, lockout armed")
	}
	l.save(w)
}

// Remaining returns how many attempts are left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, now := l.load()
	if w.LockedUntil > now {
		return 0
	}
	left := l.cfg.MaxAttempts - len(w.Attempts)
	if left < 0 {
		return 0
	}
	return left
}

// ResetIn returns how long until the oldest attempt slides out of the
// window, or zero when the window is empty.
func (l *Limiter) ResetIn() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, now := l.load()
	if len(w.Attempts) == 0 {
		return 0
	}
	reset := w.Attempts[0] + l.cfg.Window.Milliseconds() - now
	if reset < 0 {
		return 0
	}
	return time.Duration(reset) * time.Millisecond
}

// LockoutRemaining returns how long the active lockout has left, or zero.
func (l *Limiter) LockoutRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, now := l.load()
	if w.LockedUntil <= now {
		return 0
	}
	return time.Duration(w.LockedUntil-now) * time.Millisecond
}

// Reset clears the window and any lockout.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Delete(l.key)
}

// load reads and prunes the persisted window. Must hold l.mu.
func (l *Limiter) load() (window, int64) {
	now := l.clk.Now().UnixMilli()
	var w window
	if !l.store.Get(l.key, &w) {
		return window{}, now
	}
	cutoff := now - l.cfg.Window.Milliseconds()
	pruned := w.Attempts[:0]
	for _, ts := range w.Attempts {
		if ts > cutoff {
			pruned = append(pruned, ts)
		}
	}
	w.Attempts = pruned
	return w, now
}

// save persists the window. Must hold l.mu.
func (l *Limiter) save(w window) {
	if !l.store.Put(l.key, w) {
		log.Warn().Str("key", l.key).Msg("Failed to persist attempt window")
	}
}
