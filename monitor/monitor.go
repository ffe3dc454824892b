// Package monitor runs periodic tamper heuristics and wipes sensitive
// state on the first hit. Detection here is advisory hardening only: the
// probes are observable and bypassable by anyone who controls the
// execution environment, and each one is false-positive-prone on its own.
package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/scanvault/clock"
)

// Monitor evaluates a probe set on a fixed cadence and fires onTrigger
// exactly once, no matter how many probes hit or how often.
type Monitor struct {
	clk       clock.Clock
	probes    []Probe
	onTrigger func(reason string)

	mu       sync.Mutex
	reason   string
	ticker   clock.Ticker
	done     chan struct{}
	startAck sync.Once
	stopAck  sync.Once
	fireAck  sync.Once
}

// New creates a Monitor over the given probes. onTrigger is invoked at
// most once with the reason of the first probe that fired.
func New(clk clock.Clock, probes []Probe, onTrigger func(reason string)) *Monitor {
	return &Monitor{
		clk:       clk,
		probes:    probes,
		onTrigger: onTrigger,
		done:      make(chan struct{}),
	}
}

// Start begins the background check loop. Safe to call more than once.
func (m *Monitor) Start(interval time.Duration) {
	m.startAck.Do(func() {
		m.ticker = m.clk.NewTicker(interval)
		go m.loop()
	})
}

// Stop halts the check loop. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopAck.Do(func() {
		close(m.done)
		if m.ticker != nil {
			m.ticker.Stop()
		}
	})
}

// TriggerReason returns why the monitor fired, or empty if it has not.
func (m *Monitor) TriggerReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// CheckNow runs the probe set once, outside the loop cadence. Returns
// true if any probe fired.
func (m *Monitor) CheckNow() bool {
	return m.runChecks()
}

func (m *Monitor) loop() {
	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C():
			if m.runChecks() {
				return
			}
		}
	}
}

func (m *Monitor) runChecks() bool {
	for _, p := range m.probes {
		reason := p.Check()
		if reason == "" {
			continue
		}
		m.fire(p.Name(), reason)
		return true
	}
	return false
}

func (m *Monitor) fire(probe, reason string) {
	m.fireAck.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()

		log.Warn().
			Str("probe", probe).
			Str("reason", reason).
			Msg("Tamper heuristic fired, wiping sensitive state")

		if m.onTrigger != nil {
			m.onTrigger(reason)
		}
	})
}
