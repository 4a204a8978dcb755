package probes

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// PersistenceProbe watches a single autostart directory and reports a
// persistence_created event for every entry not previously seen,
// grounded on
// original_source/agent-test/sentinel_agent/collectors/persistence_collector.py.
type PersistenceProbe struct {
	startupPath string
	mgr         ContextAttacher
	logger      *zap.Logger
	known       map[string]struct{}
}

// NewPersistenceProbe constructs a PersistenceProbe watching startupPath.
func NewPersistenceProbe(startupPath string, mgr ContextAttacher, logger *zap.Logger) *PersistenceProbe {
	return &PersistenceProbe{startupPath: startupPath, mgr: mgr, logger: logger, known: make(map[string]struct{})}
}

// Run ticks at interval until ctx is canceled.
func (p *PersistenceProbe) Run(ctx context.Context, interval time.Duration) {
	run(ctx, "persistence", interval, p.logger, p.tick)
}

func (p *PersistenceProbe) tick() {
	entries, err := os.ReadDir(p.startupPath)
	if err != nil {
		return // directory absent or unreadable: skip this cycle
	}
	for _, entry := range entries {
		name := entry.Name()
		if _, seen := p.known[name]; seen {
			continue
		}
		p.known[name] = struct{}{}

		event := model.RawEvent{
			EventType: model.EventPersistenceCreated,
			Location:  p.startupPath,
			FilePath:  name,
		}
		attachToMostRecent(p.mgr, event)
	}
}
