//go:build linux

package monitor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Harden blocks core dumps and restricts /proc/pid/mem access so wiped
// credentials cannot be recovered from a dump of this process.
func Harden() error {
	if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("failed to set PR_SET_DUMPABLE: %w", err)
	}

	rlimit := unix.Rlimit{Cur: 0, Max: 0}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &rlimit); err != nil {
		return fmt.Errorf("failed to set RLIMIT_CORE: %w", err)
	}

	return nil
}
