//go:build windows

package probes

// isElevated has no portable equivalent of euid on Windows; the original
// collector only ever ran the Unix branch of its check. Reporting false
// here is a documented limitation, not a fatal error.
func isElevated() bool {
	return false
}
