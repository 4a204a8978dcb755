// Package identity derives the agent's immutable device identity, grounded
// on original_source/agent-test/sentinel_agent/identity/device_identity.py:
// a stable hardware-bound identifier is hashed into a short device id, and
// hostname/OS/arch/user are read from the host.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/user"
	"runtime"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// Resolve derives the DeviceIdentity for the host this agent runs on. It
// never fails fatally: any missing field falls back to a safe default
// rather than aborting agent startup.
func Resolve() model.DeviceIdentity {
	return model.DeviceIdentity{
		DeviceID:     deviceID(),
		Hostname:     hostname(),
		OS:           runtime.GOOS,
		OSVersion:    osVersion(),
		Architecture: runtime.GOARCH,
		User:         currentUser(),
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown-host"
	}
	return h
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown-user"
	}
	return u.Username
}

// osVersion has no portable stdlib source; kept as GOOS until a
// platform-specific probe is added (see SPEC_FULL.md §3).
func osVersion() string {
	return runtime.GOOS
}

// deviceID hashes the first stable hardware MAC address found on the host
// into a short hex token. Falls back to hostname+GOOS when no interface
// carries a non-zero MAC (containers, some VMs) — a documented limitation,
// not a fatal error.
func deviceID() string {
	mac := stableMAC()
	if mac == "" {
		mac = hostname() + "-" + runtime.GOOS
	}
	sum := sha256.Sum256([]byte(mac))
	return fmt.Sprintf("dev-%s", hex.EncodeToString(sum[:])[:16])
}

func stableMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}
