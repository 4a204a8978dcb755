// Package probes implements the agent's six periodic observation tasks
// (spec.md §4.1): process, network, filesystem, persistence, memory, and
// privilege. Each runs on its own poll interval, tolerates per-target
// failure by skipping that target, and never assigns context_id itself —
// it either creates a context (process_start), looks one up by pid via
// the Linker, or, for events with no pid, attaches to the most recently
// created context. Grounded on
// original_source/agent-test/sentinel_agent/collectors/*.py, translated
// from psutil/os polling into /proc reads via prometheus/procfs, the
// process-metrics library already present across the retrieval pack
// (e.g. DataDog-datadog-agent's go.mod).
package probes

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/linker"
	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// ContextCreator is the narrow capability the process probe needs to
// anchor a new context.
type ContextCreator interface {
	CreateContext(anchor model.RawEvent) string
}

// ContextAttacher is the narrow capability every other probe needs to
// attach an event to an already-open context.
type ContextAttacher interface {
	AddEvent(contextID string, event model.RawEvent)
	MostRecent() (string, bool)
}

// Manager satisfies both capabilities; probes take the narrower
// interface they actually need.
type Manager interface {
	ContextCreator
	ContextAttacher
}

// run is the shared ticker-loop shape used by every probe (grounded on
// apps/discovery-service/internal/worker/scan_poller.go's Run/poll
// split): tick at interval until ctx is canceled, invoking tick on every
// fire. Each tick handles its own per-target errors; run logs only the
// probe's start and stop.
func run(ctx context.Context, name string, interval time.Duration, logger *zap.Logger, tick func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("probe started", zap.String("probe", name), zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("probe stopping", zap.String("probe", name))
			return
		case <-ticker.C:
			tick()
		}
	}
}

func attachToPID(linker *linker.Linker, mgr ContextAttacher, pid int, event model.RawEvent) {
	contextID, ok := linker.Lookup(pid)
	if !ok {
		return
	}
	event.PID = pid
	mgr.AddEvent(contextID, event)
}

// attachToMostRecent is the fallback used by probes whose events have no
// natural pid correlation (persistence, privilege/access), mirroring the
// original collectors' `list(context_manager.contexts.keys())[-1]` hack.
func attachToMostRecent(mgr ContextAttacher, event model.RawEvent) {
	contextID, ok := mgr.MostRecent()
	if !ok {
		return
	}
	mgr.AddEvent(contextID, event)
}
