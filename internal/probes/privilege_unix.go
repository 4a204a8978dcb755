//go:build !windows

package probes

import "os"

// isElevated reports whether the agent process itself is running with
// root privileges (euid 0), mirroring the original's
// `os.geteuid() == 0` snapshot.
func isElevated() bool {
	return os.Geteuid() == 0
}
