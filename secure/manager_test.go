package secure

import (
	"strings"
	"testing"
	"time"

	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/monitor"
	"github.com/pixelforge/scanvault/store"
)

const testKey = "validKey1234567890AB" // 20 chars, allowed charset

func newTestManager(t *testing.T, hooks Hooks) (*Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake()
	m := NewManager(DefaultConfig(), clk, store.NewMemoryBackend(), store.NewMemoryBackend(), nil, hooks)
	m.Initialize()
	t.Cleanup(m.Close)
	return m, clk
}

func TestCredentialLifecycle(t *testing.T) {
	m, _ := newTestManager(t, Hooks{})

	if m.HasCredential() {
		t.Fatal("fresh manager reports a credential")
	}

	// Below the minimum length: rejected, nothing stored.
	if m.SetCredential("abc") {
		t.Error("SetCredential accepted a 3-char credential")
	}
	if m.HasCredential() {
		t.Error("rejected credential was stored anyway")
	}

	if !m.SetCredential(testKey) {
		t.Fatal("SetCredential rejected a valid credential")
	}
	got, ok := m.GetCredential()
	if !ok || got != testKey {
		t.Errorf("GetCredential = %q, %v; want %q, true", got, ok, testKey)
	}

	masked := m.GetMaskedCredential()
	if !strings.HasSuffix(masked, "90AB") {
		t.Errorf("masked credential %q does not end with last four chars", masked)
	}
	if strings.Contains(masked, testKey[:8]) {
		t.Errorf("masked credential %q leaks the credential body", masked)
	}

	m.RemoveCredential()
	if m.HasCredential() {
		t.Error("credential still present after RemoveCredential")
	}
}

func TestSetCredentialSanitizes(t *testing.T) {
	m, _ := newTestManager(t, Hooks{})

	// Disallowed characters are stripped before the length check.
	if !m.SetCredential("  validKey1234567890AB  ") {
		t.Fatal("whitespace-padded credential rejected")
	}
	got, _ := m.GetCredential()
	if got != testKey {
		t.Errorf("GetCredential = %q, want sanitized %q", got, testKey)
	}

	// After stripping, too short.
	if m.SetCredential("<script>alert(1)</script>") {
		t.Error("markup-only credential accepted")
	}
}

func TestValidateCredentialReasons(t *testing.T) {
	m, _ := newTestManager(t, Hooks{})

	if err := m.ValidateCredential("abc"); err == nil {
		t.Error("short credential validated")
	}
	if err := m.ValidateCredential(strings.Repeat("a", 200)); err == nil {
		t.Error("oversized credential validated")
	}
	if err := m.ValidateCredential(testKey); err != nil {
		t.Errorf("valid credential rejected: %v", err)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, Hooks{})

	m.SetCredential(testKey)
	before := m.GetStatus()

	m.Initialize()
	m.Initialize()

	after := m.GetStatus()
	if before != after {
		t.Errorf("status changed across re-initialization: %+v vs %+v", before, after)
	}
	if got, _ := m.GetCredential(); got != testKey {
		t.Error("credential lost across re-initialization")
	}
}

func TestUninitializedCollapsesToAbsent(t *testing.T) {
	clk := clock.NewFake()
	m := NewManager(DefaultConfig(), clk, store.NewMemoryBackend(), store.NewMemoryBackend(), nil, Hooks{})

	if m.SetCredential(testKey) {
		t.Error("uninitialized SetCredential succeeded")
	}
	if _, ok := m.GetCredential(); ok {
		t.Error("uninitialized GetCredential returned a value")
	}
	if m.CanAttempt() {
		t.Error("uninitialized CanAttempt returned true")
	}
	if got := m.GetStatus(); got != (Status{}) {
		t.Errorf("uninitialized GetStatus = %+v, want zero", got)
	}
}

func TestSessionExpiryGatesCredential(t *testing.T) {
	m, clk := newTestManager(t, Hooks{})
	m.SetCredential(testKey)

	clk.Advance(31 * time.Minute)

	if _, ok := m.GetCredential(); ok {
		t.Error("credential served after session timeout")
	}
	if st := m.GetStatus(); st.SessionValid {
		t.Error("status reports valid session after timeout")
	}
}

func TestInactivityErasesCredentialAndPrompts(t *testing.T) {
	prompted := 0
	m, clk := newTestManager(t, Hooks{ShowPrompt: func() { prompted++ }})
	m.SetCredential(testKey)

	// Activity keeps the session alive past the inactivity window.
	clk.Advance(9 * time.Minute)
	m.Touch("keydown")
	clk.Advance(9 * time.Minute)
	m.Touch("click")
	if prompted != 0 {
		t.Fatalf("prompt shown despite activity, count=%d", prompted)
	}

	clk.Advance(10 * time.Minute)
	if prompted != 1 {
		t.Fatalf("prompt count = %d, want 1 after idle", prompted)
	}
	if st := m.GetStatus(); st.HasCredential {
		t.Error("credential survived the idle wipe")
	}
}

func TestAttemptGating(t *testing.T) {
	m, clk := newTestManager(t, Hooks{})

	for i := 0; i < 5; i++ {
		if !m.CanAttempt() {
			t.Fatalf("attempt %d refused", i+1)
		}
		m.RecordAttempt()
	}
	if m.CanAttempt() {
		t.Error("sixth attempt allowed")
	}

	st := m.GetStatus()
	if st.RemainingAttempts != 0 {
		t.Errorf("RemainingAttempts = %d, want 0", st.RemainingAttempts)
	}
	if st.LockoutRemainingMs != (5 * time.Minute).Milliseconds() {
		t.Errorf("LockoutRemainingMs = %d, want 5m", st.LockoutRemainingMs)
	}

	clk.Advance(5*time.Minute + time.Millisecond)
	if !m.CanAttempt() {
		t.Error("attempt refused after lockout elapsed")
	}
}

func TestTamperTriggerWipesBothLayers(t *testing.T) {
	clk := clock.NewFake()
	probe := &armedProbe{}
	m := NewManager(DefaultConfig(), clk, store.NewMemoryBackend(), store.NewMemoryBackend(), []monitor.Probe{probe}, Hooks{})
	m.Initialize()
	defer m.Close()

	m.SetCredential(testKey)
	m.Store().Put("scan_result", "page 1 text")

	probe.armed = true
	if !m.mon.CheckNow() {
		t.Fatal("armed probe did not fire")
	}

	if m.HasCredential() {
		t.Error("credential survived tamper wipe")
	}
	var s string
	if m.Store().Get("scan_result", &s) {
		t.Error("stored data survived tamper wipe")
	}
}

type armedProbe struct{ armed bool }

func (p *armedProbe) Name() string { return "armed" }
func (p *armedProbe) Check() string {
	if p.armed {
		return "test trigger"
	}
	return ""
}

func TestLegacyCredentialMigration(t *testing.T) {
	clk := clock.NewFake()
	short := store.NewMemoryBackend()
	short.Put("ocr_api_key", []byte(testKey))

	m := NewManager(DefaultConfig(), clk, short, store.NewMemoryBackend(), nil, Hooks{})
	m.Initialize()
	defer m.Close()

	got, ok := m.GetCredential()
	if !ok || got != testKey {
		t.Fatalf("migrated credential = %q, %v; want %q, true", got, ok, testKey)
	}
	if _, err := short.Get("ocr_api_key"); err == nil {
		t.Error("legacy plaintext key still present after migration")
	}
}

func TestCloseWipesSessionLayer(t *testing.T) {
	clk := clock.NewFake()
	short := store.NewMemoryBackend()
	m := NewManager(DefaultConfig(), clk, short, store.NewMemoryBackend(), nil, Hooks{})
	m.Initialize()
	m.RecordAttempt()

	m.Close()
	m.Close()

	keys, err := short.Keys(store.Namespace)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("session layer still holds %d namespaced keys after close", len(keys))
	}
}

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"<b>bold</b>", "bbold/b"},
		{"JavaScript:alert(1)", "alert(1)"},
		{`<img src=x onerror=alert(1)>`, "img src=x alert(1)"},
		{"a onclick=doEvil()", "a doEvil()"},
	}
	for _, tc := range cases {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
