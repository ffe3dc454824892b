package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pixelforge/scanvault/clock"
)

// Probe is a single tamper heuristic. Check returns a human-readable
// reason when the heuristic fires and the empty string otherwise.
// Probes are expected to be false-positive-prone individually; the
// Monitor ORs them together and treats any hit as advisory.
type Probe interface {
	Name() string
	Check() string
}

// inspectionTools lists process names associated with debuggers and
// inspection tooling that should trigger a wipe.
var inspectionTools = []string{
	"gdb",
	"strace",
	"ltrace",
	"lldb",
	"delve",
	"dlv",
	"frida",
	"r2",
	"radare2",
	"ghidra",
	"ida",
	"ida64",
}

// TracerPIDProbe reads the TracerPid field of a status file in proc
// format. A non-zero value means another process is tracing us.
type TracerPIDProbe struct {
	// StatusPath defaults to /proc/self/status when empty.
	StatusPath string
}

func (p *TracerPIDProbe) Name() string { return "tracer_pid" }

func (p *TracerPIDProbe) Check() string {
	path := p.StatusPath
	if path == "" {
		path = "/proc/self/status"
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "TracerPid:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] != "0" {
			return fmt.Sprintf("tracer attached (pid %s)", fields[1])
		}
		break
	}
	return ""
}

// DebuggerParentProbe checks whether the parent process name matches a
// known debugger or inspection tool.
type DebuggerParentProbe struct {
	// ProcRoot defaults to /proc when empty. Tests point it at a fixture.
	ProcRoot string
	// Tools extends the built-in inspection tool list.
	Tools []string
}

func (p *DebuggerParentProbe) Name() string { return "debugger_parent" }

func (p *DebuggerParentProbe) Check() string {
	root := p.ProcRoot
	if root == "" {
		root = "/proc"
	}
	ppid := os.Getppid()
	comm, err := os.ReadFile(fmt.Sprintf("%s/%d/comm", root, ppid))
	if err != nil {
		return ""
	}

	name := strings.ToLower(strings.TrimSpace(string(comm)))
	for _, tool := range inspectionTools {
		if name == tool {
			return fmt.Sprintf("debugger parent detected: %s (pid %d)", name, ppid)
		}
	}
	for _, tool := range p.Tools {
		if name == strings.ToLower(tool) {
			return fmt.Sprintf("debugger parent detected: %s (pid %d)", name, ppid)
		}
	}
	return ""
}

// StallProbe flags anomalously long gaps between consecutive checks.
// The Monitor runs probes on a fixed cadence; when the process is
// suspended under a debugger, the observed gap far exceeds the cadence.
type StallProbe struct {
	clk       clock.Clock
	interval  time.Duration
	threshold time.Duration
	last      time.Time
}

// NewStallProbe creates a StallProbe for a monitor running at interval.
// A gap exceeding interval+threshold counts as a stall.
func NewStallProbe(clk clock.Clock, interval, threshold time.Duration) *StallProbe {
	return &StallProbe{clk: clk, interval: interval, threshold: threshold}
}

func (p *StallProbe) Name() string { return "stall" }

func (p *StallProbe) Check() string {
	now := p.clk.Now()
	if p.last.IsZero() {
		p.last = now
		return ""
	}
	gap := now.Sub(p.last)
	p.last = now
	if gap > p.interval+p.threshold {
		return fmt.Sprintf("execution stalled for %s (expected %s)", gap, p.interval)
	}
	return ""
}
