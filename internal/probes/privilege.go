package probes

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// PrivilegeProbe is the sixth probe: it reports the process's current
// elevation state as a privilege_context event each cycle, and an
// unauthorized_access_attempt event whenever a protected path becomes
// unreadable, grounded on
// original_source/Agent/agent/collectors/privilege/privilege_collector.py
// (is_admin snapshot) and
// original_source/agent-test/sentinel_agent/collectors/access_collector.py
// (protected-path permission check), merged into the single probe
// spec.md names.
type PrivilegeProbe struct {
	protectedPaths []string
	mgr            ContextAttacher
	logger         *zap.Logger
}

// NewPrivilegeProbe constructs a PrivilegeProbe watching protectedPaths
// for permission-denied access attempts.
func NewPrivilegeProbe(protectedPaths []string, mgr ContextAttacher, logger *zap.Logger) *PrivilegeProbe {
	return &PrivilegeProbe{protectedPaths: protectedPaths, mgr: mgr, logger: logger}
}

// Run ticks at interval until ctx is canceled.
func (p *PrivilegeProbe) Run(ctx context.Context, interval time.Duration) {
	run(ctx, "privilege", interval, p.logger, p.tick)
}

func (p *PrivilegeProbe) tick() {
	attachToMostRecent(p.mgr, model.RawEvent{
		EventType: model.EventPrivilegeContext,
		IsAdmin:   isElevated(),
	})

	for _, path := range p.protectedPaths {
		if _, err := os.ReadDir(path); err != nil && os.IsPermission(err) {
			attachToMostRecent(p.mgr, model.RawEvent{
				EventType: model.EventUnauthorizedAccess,
				Path:      path,
			})
		}
	}
}
