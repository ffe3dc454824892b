//go:build !linux

package monitor

// Harden is a no-op on platforms without prctl.
func Harden() error {
	return nil
}
