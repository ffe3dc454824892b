package session

import (
	"testing"
	"time"

	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/codec"
	"github.com/pixelforge/scanvault/store"
)

const (
	testSessionTimeout    = 30 * time.Minute
	testInactivityTimeout = 5 * time.Minute
)

func newTestTracker(onIdle func()) (*Tracker, *clock.Fake) {
	clk := clock.NewFake()
	cdc := codec.New(clk, 24*time.Hour)
	st := store.New(store.NewMemoryBackend(), cdc, clk, 24*time.Hour)
	cfg := Config{
		SessionTimeout:    testSessionTimeout,
		InactivityTimeout: testInactivityTimeout,
	}
	return NewTracker(st, clk, cfg, onIdle), clk
}

func TestValidAfterStart(t *testing.T) {
	tr, _ := newTestTracker(nil)

	if tr.IsValid() {
		t.Error("session should be invalid before Start")
	}
	tr.Start()
	if !tr.IsValid() {
		t.Error("session should be valid immediately after Start")
	}
}

func TestInvalidAfterAbsoluteTimeout(t *testing.T) {
	tr, clk := newTestTracker(nil)
	tr.Start()

	// Keep touching; activity must not extend absolute validity.
	for i := 0; i < 10; i++ {
		clk.Advance(testSessionTimeout / 10)
		tr.Touch("keydown")
	}

	if tr.IsValid() {
		t.Error("session should be invalid after the absolute timeout despite activity")
	}
}

func TestStartReplacesRecord(t *testing.T) {
	tr, clk := newTestTracker(nil)
	tr.Start()

	clk.Advance(testSessionTimeout + time.Minute)
	if tr.IsValid() {
		t.Fatal("expired session should be invalid")
	}

	tr.Start()
	if !tr.IsValid() {
		t.Error("a fresh Start should produce a valid session")
	}
}

func TestInactivityTimerFires(t *testing.T) {
	fired := 0
	tr, clk := newTestTracker(func() { fired++ })
	tr.Start()

	clk.Advance(testInactivityTimeout)
	if fired != 1 {
		t.Errorf("idle callback fired %d times, want 1", fired)
	}
}

func TestActivityDebouncesInactivityTimer(t *testing.T) {
	fired := 0
	tr, clk := newTestTracker(func() { fired++ })
	tr.Start()

	// Activity just before each deadline keeps pushing the timer out.
	for i := 0; i < 5; i++ {
		clk.Advance(testInactivityTimeout - time.Second)
		tr.Touch("pointerdown")
	}
	if fired != 0 {
		t.Fatalf("idle callback fired %d times during active period", fired)
	}

	clk.Advance(testInactivityTimeout)
	if fired != 1 {
		t.Errorf("idle callback fired %d times after going idle, want 1", fired)
	}
}

func TestTimersNeverStack(t *testing.T) {
	fired := 0
	tr, clk := newTestTracker(func() { fired++ })
	tr.Start()

	// A burst of activity must leave exactly one pending timer.
	for i := 0; i < 20; i++ {
		tr.Touch("scroll")
	}
	clk.Advance(10 * testInactivityTimeout)

	if fired != 1 {
		t.Errorf("idle callback fired %d times, want exactly 1", fired)
	}
}

func TestUnrecognizedEventIgnored(t *testing.T) {
	fired := 0
	tr, clk := newTestTracker(func() { fired++ })
	tr.Start()

	clk.Advance(testInactivityTimeout - time.Second)
	tr.Touch("resize") // not an activity class
	clk.Advance(time.Second)

	if fired != 1 {
		t.Errorf("unrecognized event should not reset the timer (fired=%d)", fired)
	}
}

func TestStopCancelsTimer(t *testing.T) {
	fired := 0
	tr, clk := newTestTracker(func() { fired++ })
	tr.Start()
	tr.Stop()

	clk.Advance(10 * testInactivityTimeout)
	if fired != 0 {
		t.Errorf("idle callback fired %d times after Stop", fired)
	}
}
