// Package secure wires the obfuscation codec, integrity-checked store,
// session tracker, attempt limiter, and tamper monitor into a single
// capability surface. Callers receive a Manager by injection instead of
// reaching for shared globals, so each test can build an isolated one.
package secure

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/scanvault/attempt"
	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/codec"
	"github.com/pixelforge/scanvault/monitor"
	"github.com/pixelforge/scanvault/session"
	"github.com/pixelforge/scanvault/store"
)

const (
	credentialKey = "credential"
	attemptKey    = "attempts"

	// legacyCredentialKey is where earlier releases kept the credential in
	// plaintext, outside the reserved namespace. It is migrated on first
	// read and then removed.
	legacyCredentialKey = "ocr_api_key"
)

// ErrCredentialFormat is wrapped by every credential rejection reason.
var ErrCredentialFormat = errors.New("invalid credential format")

// Hooks are the only coupling points to the host application's UI layer.
// Either hook may be nil.
type Hooks struct {
	ShowPrompt func()
	HidePrompt func()
}

// Status is a point-in-time snapshot of the layer, computed fresh on
// every call and never cached.
type Status struct {
	SessionValid       bool  `json:"session_valid"`
	HasCredential      bool  `json:"has_credential"`
	RemainingAttempts  int   `json:"remaining_attempts"`
	LockoutRemainingMs int64 `json:"lockout_remaining_ms"`
}

// Manager is the security coordinator. Its lifecycle is a single boolean:
// uninitialized until Initialize, then initialized for the rest of the
// process; Initialize is idempotent and Close tears everything down.
type Manager struct {
	cfg    *Config
	clk    clock.Clock
	hooks  Hooks
	probes []monitor.Probe

	shortBackend store.Backend
	longBackend  store.Backend

	mu          sync.Mutex
	initialized bool
	closed      bool

	cdc     *codec.Codec
	short   *store.Store
	long    *store.Store
	tracker *session.Tracker
	limiter *attempt.Limiter
	mon     *monitor.Monitor

	sweepTicker clock.Ticker
	done        chan struct{}
}

// NewManager creates an uninitialized Manager. The short backend is the
// session-scoped layer (credential, session record, attempt window); the
// long backend is the page-scoped layer for host data. probes may be empty.
func NewManager(cfg *Config, clk clock.Clock, short, long store.Backend, probes []monitor.Probe, hooks Hooks) *Manager {
	return &Manager{
		cfg:          cfg,
		clk:          clk,
		hooks:        hooks,
		probes:       probes,
		shortBackend: short,
		longBackend:  long,
		done:         make(chan struct{}),
	}
}

// Initialize brings up the components in dependency order and starts the
// background sweeps. Calling it again after success is a no-op.
func (m *Manager) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized || m.closed {
		return
	}

	m.cdc = codec.New(m.clk, m.cfg.CredentialMaxAge())
	m.short = store.New(m.shortBackend, m.cdc, m.clk, m.cfg.DataExpiry())
	m.long = store.New(m.longBackend, m.cdc, m.clk, m.cfg.DataExpiry())

	m.tracker = session.NewTracker(m.short, m.clk, session.Config{
		SessionTimeout:    m.cfg.SessionTimeout(),
		InactivityTimeout: m.cfg.InactivityTimeout(),
		ActivityEvents:    m.cfg.ActivityEvents,
	}, m.onIdle)

	m.limiter = attempt.NewLimiter(m.short, m.clk, attemptKey, attempt.Config{
		MaxAttempts: m.cfg.MaxAttempts,
		Window:      m.cfg.AttemptWindow(),
		Lockout:     m.cfg.Lockout(),
	})

	m.mon = monitor.New(m.clk, m.probes, m.onTamper)

	m.tracker.Start()
	m.mon.Start(m.cfg.MonitorInterval())

	m.sweepTicker = m.clk.NewTicker(m.cfg.SweepInterval())
	go m.sweepLoop()

	m.migrateLegacyCredential()

	// Startup sweep, before anything is served.
	m.short.Sweep()
	m.long.Sweep()
	m.long.SweepExpired()

	m.initialized = true

	log.Info().
		Dur("session_timeout", m.cfg.SessionTimeout()).
		Dur("data_expiry", m.cfg.DataExpiry()).
		Int("max_attempts", m.cfg.MaxAttempts).
		Msg("Security layer initialized")
}

// Close stops the timers and wipes the session-scoped layer, credential
// included. It is the page-hide analog: only host data in the page-scoped
// layer survives. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if !m.initialized {
		return
	}

	m.tracker.Stop()
	m.mon.Stop()
	m.sweepTicker.Stop()
	close(m.done)
	m.short.Clear()

	log.Info().Msg("Security layer closed")
}

// Touch reports a host activity event to the session tracker.
func (m *Manager) Touch(event string) {
	if t := m.component(); t != nil {
		t.tracker.Touch(event)
	}
}

// GetCredential returns the stored credential, or false when none is
// stored, the envelope has aged out, or the session is no longer valid.
func (m *Manager) GetCredential() (string, bool) {
	c := m.component()
	if c == nil || !c.tracker.IsValid() {
		return "", false
	}

	var wrapped string
	if !c.short.Get(credentialKey, &wrapped) {
		return "", false
	}
	secret, ok := c.cdc.UnwrapCredential(wrapped)
	if !ok {
		// Aged or malformed envelope; self-heal like every other read.
		c.short.Delete(credentialKey)
		return "", false
	}
	return secret, true
}

// SetCredential sanitizes and validates raw, then stores it. Returns
// false when the sanitized credential fails the format check.
func (m *Manager) SetCredential(raw string) bool {
	c := m.component()
	if c == nil {
		return false
	}

	cleaned := sanitizeCredential(raw)
	if err := m.validateCredential(cleaned); err != nil {
		log.Debug().Err(err).Msg("Credential rejected")
		return false
	}

	wrapped, ok := c.cdc.WrapCredential(cleaned)
	if !ok {
		return false
	}
	if !c.short.Put(credentialKey, wrapped) {
		return false
	}
	if m.hooks.HidePrompt != nil {
		m.hooks.HidePrompt()
	}
	return true
}

// ValidateCredential reports why a raw credential would be rejected,
// without storing anything. Returns nil when it would be accepted.
func (m *Manager) ValidateCredential(raw string) error {
	return m.validateCredential(sanitizeCredential(raw))
}

func (m *Manager) validateCredential(cleaned string) error {
	if len(cleaned) < m.cfg.CredentialMinLength {
		return fmt.Errorf("%w: shorter than %d characters after sanitization",
			ErrCredentialFormat, m.cfg.CredentialMinLength)
	}
	if len(cleaned) > m.cfg.CredentialMaxLength {
		return fmt.Errorf("%w: longer than %d characters",
			ErrCredentialFormat, m.cfg.CredentialMaxLength)
	}
	return nil
}

// RemoveCredential deletes the stored credential.
func (m *Manager) RemoveCredential() {
	if c := m.component(); c != nil {
		c.short.Delete(credentialKey)
	}
}

// HasCredential reports whether a retrievable credential is stored.
func (m *Manager) HasCredential() bool {
	_, ok := m.GetCredential()
	return ok
}

// GetMaskedCredential returns the credential in display form, or the
// empty string when none is stored.
func (m *Manager) GetMaskedCredential() string {
	secret, ok := m.GetCredential()
	if !ok {
		return ""
	}
	return codec.Mask(secret)
}

// CanAttempt reports whether a credential submission is currently allowed.
func (m *Manager) CanAttempt() bool {
	c := m.component()
	if c == nil {
		return false
	}
	return c.limiter.CanAttempt()
}

// RecordAttempt counts a credential submission against the window,
// regardless of whether it later validates.
func (m *Manager) RecordAttempt() {
	if c := m.component(); c != nil {
		c.limiter.RecordAttempt()
	}
}

// GetStatus assembles a fresh snapshot of the layer.
func (m *Manager) GetStatus() Status {
	c := m.component()
	if c == nil {
		return Status{}
	}
	return Status{
		SessionValid:       c.tracker.IsValid(),
		HasCredential:      m.HasCredential(),
		RemainingAttempts:  c.limiter.Remaining(),
		LockoutRemainingMs: c.limiter.LockoutRemaining().Milliseconds(),
	}
}

// Store exposes the page-scoped store for host data that wants the same
// obfuscation, integrity, and expiry treatment as the credential.
func (m *Manager) Store() *store.Store {
	c := m.component()
	if c == nil {
		return nil
	}
	return c.long
}

// component returns the manager itself when initialized, nil otherwise.
// Uninitialized calls collapse to absent values rather than panics.
func (m *Manager) component() *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized || m.closed {
		return nil
	}
	return m
}

// onIdle fires when the inactivity window elapses. The credential is
// erased and the host is asked to re-prompt.
func (m *Manager) onIdle() {
	log.Info().Msg("Session idle, erasing credential")
	m.RemoveCredential()
	if m.hooks.ShowPrompt != nil {
		m.hooks.ShowPrompt()
	}
}

// onTamper fires at most once, from the monitor. Both layers lose their
// reserved namespace.
func (m *Manager) onTamper(reason string) {
	c := m.component()
	if c == nil {
		return
	}
	c.short.Clear()
	c.long.Clear()
	if m.hooks.ShowPrompt != nil {
		m.hooks.ShowPrompt()
	}
}

// migrateLegacyCredential adopts a plaintext credential left behind by
// earlier releases, re-storing it through the codec and deleting the
// original. Called with m.mu held, before initialized is set.
func (m *Manager) migrateLegacyCredential() {
	raw, err := m.shortBackend.Get(legacyCredentialKey)
	if err != nil {
		return
	}

	cleaned := sanitizeCredential(string(raw))
	if m.validateCredential(cleaned) == nil {
		if wrapped, ok := m.cdc.WrapCredential(cleaned); ok {
			if m.short.Put(credentialKey, wrapped) {
				log.Info().Msg("Migrated legacy plaintext credential")
			}
		}
	}
	if err := m.shortBackend.Delete(legacyCredentialKey); err != nil {
		log.Warn().Err(err).Msg("Failed to remove legacy credential")
	}
}

func (m *Manager) sweepLoop() {
	for {
		select {
		case <-m.done:
			return
		case <-m.sweepTicker.C():
			m.runSweep()
		}
	}
}

// runSweep verifies both layers and expires wrapper-shaped host data.
func (m *Manager) runSweep() {
	c := m.component()
	if c == nil {
		return
	}
	purged := c.short.Sweep() + c.long.Sweep() + c.long.SweepExpired()
	if purged > 0 {
		log.Info().Int("purged", purged).Msg("Periodic sweep removed entries")
	}
}
