package probes

import (
	"context"
	"time"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/linker"
	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

const highMemoryThresholdMB = 500.0

// MemoryProbe reports a high_memory_usage event for any process whose
// resident set exceeds highMemoryThresholdMB, attached via the Linker by
// pid, grounded on
// original_source/agent-test/sentinel_agent/collectors/memory_collector.py.
type MemoryProbe struct {
	fs     procfs.FS
	mgr    ContextAttacher
	linker *linker.Linker
	logger *zap.Logger
}

// NewMemoryProbe constructs a MemoryProbe over the default /proc mount.
func NewMemoryProbe(mgr ContextAttacher, l *linker.Linker, logger *zap.Logger) (*MemoryProbe, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &MemoryProbe{fs: fs, mgr: mgr, linker: l, logger: logger}, nil
}

// Run ticks at interval until ctx is canceled.
func (m *MemoryProbe) Run(ctx context.Context, interval time.Duration) {
	run(ctx, "memory", interval, m.logger, m.tick)
}

func (m *MemoryProbe) tick() {
	procs, err := m.fs.AllProcs()
	if err != nil {
		m.logger.Warn("memory probe: list failed", zap.Error(err))
		return
	}

	for _, proc := range procs {
		stat, err := proc.Stat()
		if err != nil {
			continue // process vanished between listing and stat; skip this target
		}
		memMB := float64(stat.ResidentMemory()) / (1024 * 1024)
		if memMB <= highMemoryThresholdMB {
			continue
		}

		event := model.RawEvent{
			EventType:   model.EventHighMemoryUsage,
			ProcessName: stat.Comm,
			MemoryMB:    memMB,
		}
		attachToPID(m.linker, m.mgr, proc.PID, event)
	}
}
