package probes

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/linker"
	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

type connKey struct {
	pid        int
	remoteAddr string
	remotePort uint64
}

// NetworkProbe watches established TCP connections and attaches a
// network_connect event to whichever context owns the connecting pid,
// grounded on
// original_source/.../collectors/network_collector.py.
type NetworkProbe struct {
	fs     procfs.FS
	mgr    ContextAttacher
	linker *linker.Linker
	logger *zap.Logger
	known  map[connKey]struct{}
}

// NewNetworkProbe constructs a NetworkProbe over the default /proc
// mount.
func NewNetworkProbe(mgr ContextAttacher, l *linker.Linker, logger *zap.Logger) (*NetworkProbe, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &NetworkProbe{fs: fs, mgr: mgr, linker: l, logger: logger, known: make(map[connKey]struct{})}, nil
}

// Run ticks at interval until ctx is canceled.
func (n *NetworkProbe) Run(ctx context.Context, interval time.Duration) {
	run(ctx, "network", interval, n.logger, n.tick)
}

func (n *NetworkProbe) tick() {
	inodeToPID := n.inodeOwners()

	for _, lines := range [][]procfs.NetTCPLine{n.tcpLines(false), n.tcpLines(true)} {
		for _, line := range lines {
			n.observe(line, inodeToPID)
		}
	}
}

func (n *NetworkProbe) tcpLines(v6 bool) []procfs.NetTCPLine {
	var (
		lines []procfs.NetTCPLine
		err   error
	)
	if v6 {
		lines, err = n.fs.NetTCP6()
	} else {
		lines, err = n.fs.NetTCP()
	}
	if err != nil {
		n.logger.Warn("network probe: read tcp table failed", zap.Error(err), zap.Bool("v6", v6))
		return nil
	}
	return lines
}

// inodeOwners maps a socket inode to the pid that holds it open, by
// walking each process's file descriptor targets looking for
// "socket:[N]" entries — the standard /proc technique for pid↔connection
// attribution (ss, lsof use the same approach).
func (n *NetworkProbe) inodeOwners() map[uint64]int {
	owners := make(map[uint64]int)
	procs, err := n.fs.AllProcs()
	if err != nil {
		return owners
	}
	for _, proc := range procs {
		targets, err := proc.FileDescriptorTargets()
		if err != nil {
			continue // permission denied on another user's /proc/<pid>/fd; skip this target
		}
		for _, target := range targets {
			if !strings.HasPrefix(target, "socket:[") {
				continue
			}
			raw := strings.TrimSuffix(strings.TrimPrefix(target, "socket:["), "]")
			inode, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				continue
			}
			owners[inode] = proc.PID
		}
	}
	return owners
}

const tcpEstablished = 0x01

func (n *NetworkProbe) observe(line procfs.NetTCPLine, inodeToPID map[uint64]int) {
	if line.St != tcpEstablished {
		return
	}
	pid, ok := inodeToPID[line.Inode]
	if !ok {
		return
	}

	key := connKey{pid: pid, remoteAddr: line.RemAddr.String(), remotePort: line.RemPort}
	if _, seen := n.known[key]; seen {
		return
	}
	n.known[key] = struct{}{}

	event := model.RawEvent{
		EventType:  model.EventNetworkConnect,
		RemoteAddr: line.RemAddr.String(),
		RemotePort: int(line.RemPort),
		Status:     "ESTABLISHED",
	}
	attachToPID(n.linker, n.mgr, pid, event)
}
