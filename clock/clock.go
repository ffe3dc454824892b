// Package clock abstracts timer scheduling so components that react to
// elapsed time (inactivity timers, sweeps, probe intervals) can be driven
// by a fake clock in tests instead of wall time.
package clock

import "time"

// Clock provides the current time and timer construction.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f to run once after d. The returned Timer can be
	// stopped before it fires.
	AfterFunc(d time.Duration, f func()) Timer
	// NewTicker returns a ticker that delivers on its channel every d.
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable single-shot task.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// Ticker is a repeating task source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool { return r.t.Stop() }

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
