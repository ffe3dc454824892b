// Package session tracks the lifetime of an authenticated session: an
// absolute cap on session age and a debounced inactivity timer driven by
// observed user interaction events.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/store"
)

// recordKey is where the session record lives in the short-lived store.
const recordKey = "session"

// DefaultActivityEvents are the interaction event classes that count as
// user activity.
var DefaultActivityEvents = []string{
	"pointerdown", "keydown", "scroll", "touchstart", "mousemove", "click",
}

// Record is the persisted session state. LastActivity is advisory: it
// drives the inactivity timer but validity is judged on StartedAt alone.
type Record struct {
	ID           string `json:"id"`
	StartedAt    int64  `json:"started_at"`    // unix milliseconds
	LastActivity int64  `json:"last_activity"` // unix milliseconds
}

// Config holds the tracker's timing windows and recognized event classes.
type Config struct {
	SessionTimeout    time.Duration
	InactivityTimeout time.Duration
	ActivityEvents    []string
}

// Tracker owns the session record and the single debounced inactivity
// timer. onIdle fires when the inactivity window elapses with no observed
// activity; the coordinator uses it to erase the credential and request
// re-authentication.
type Tracker struct {
	store  *store.Store
	clk    clock.Clock
	cfg    Config
	events map[string]struct{}
	onIdle func()

	mu    sync.Mutex
	timer clock.Timer
}

// NewTracker creates a Tracker persisting into st. onIdle may be nil.
func NewTracker(st *store.Store, clk clock.Clock, cfg Config, onIdle func()) *Tracker {
	if len(cfg.ActivityEvents) == 0 {
		cfg.ActivityEvents = DefaultActivityEvents
	}
	events := make(map[string]struct{}, len(cfg.ActivityEvents))
	for _, e := range cfg.ActivityEvents {
		events[e] = struct{}{}
	}
	return &Tracker{
		store:  st,
		clk:    clk,
		cfg:    cfg,
		events: events,
		onIdle: onIdle,
	}
}

// Start stamps a fresh session record, replacing any prior one, and arms
// the inactivity timer.
func (t *Tracker) Start() {
	now := t.clk.Now().UnixMilli()
	rec := Record{
		ID:           uuid.NewString(),
		StartedAt:    now,
		LastActivity: now,
	}
	if !t.store.Put(recordKey, rec) {
		log.Warn().Msg("Failed to persist session record")
	}
	log.Debug().Str("session_id", rec.ID).Msg("Session started")
	t.rearm()
}

// Touch records an activity event. Unrecognized event classes are ignored.
// Each recognized event updates LastActivity and reschedules the single
// inactivity timer; timers never stack.
func (t *Tracker) Touch(event string) {
	if _, ok := t.events[event]; !ok {
		return
	}
	var rec Record
	if t.store.Get(recordKey, &rec) {
		rec.LastActivity = t.clk.Now().UnixMilli()
		t.store.Put(recordKey, rec)
	}
	t.rearm()
}

// IsValid reports whether a session record exists and its absolute age is
// under the session timeout. Activity never extends validity.
func (t *Tracker) IsValid() bool {
	var rec Record
	if !t.store.Get(recordKey, &rec) {
		return false
	}
	age := t.clk.Now().UnixMilli() - rec.StartedAt
	return age >= 0 && age < t.cfg.SessionTimeout.Milliseconds()
}

// Stop cancels the pending inactivity timer.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// rearm cancels any pending inactivity timer and schedules a new one.
func (t *Tracker) rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clk.AfterFunc(t.cfg.InactivityTimeout, t.idle)
}

func (t *Tracker) idle() {
	log.Info().Msg("Inactivity timeout reached")
	if t.onIdle != nil {
		t.onIdle()
	}
}
