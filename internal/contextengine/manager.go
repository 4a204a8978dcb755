// Package contextengine implements the execution Context lifecycle
// (spec.md §3, §4.2, §4.3): anchoring a process_start event into a fresh
// context, linking subsequent events onto it by pid, and draining expired
// contexts to a caller-supplied handler once they age past the context
// timeout. Grounded on
// original_source/agent-test/sentinel_agent/context_engine/context_manager.py
// (create_context/add_event/close_context/watcher loop), with the
// Lifecycle/Graph split mirrored from context_lifecycle.py and
// context_graph.py in the same tree.
package contextengine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
)

// RawWriter is the narrow capability the Manager needs from the Raw Store:
// append the anchor and every subsequent event verbatim. Satisfied
// structurally by *rawstore.Store without an import, keeping this
// package's dependency surface to model and clock only.
type RawWriter interface {
	Write(event model.RawEvent)
}

// ExpiryHandler receives a context's anchor and accumulated events once it
// has expired. The Manager never imports the cleaner or buffer packages
// directly — wiring the handler is cmd/agent's job — keeping this
// component's capability set narrow (spec.md Design Notes).
type ExpiryHandler func(model.Context)

// Manager owns the active-context table, the per-context event graph, and
// the lifecycle (open/closed, opened_at) tracking for all of them, behind
// one mutex.
type Manager struct {
	mu sync.Mutex

	device  model.DeviceIdentity
	timeout time.Duration
	clk     clock.Clock
	raw     RawWriter

	contexts    map[string]*model.Context
	lifecycle   *lifecycle
	graph       *graph
	lastCreated string
}

// New constructs a Manager for the given device identity. timeout is the
// maximum lifetime of a context, measured from its creation regardless of
// later activity (spec.md default 30s); raw may be nil in
// tests that don't care about raw-store side effects.
func New(device model.DeviceIdentity, timeout time.Duration, clk clock.Clock, raw RawWriter) *Manager {
	return &Manager{
		device:    device,
		timeout:   timeout,
		clk:       clk,
		raw:       raw,
		contexts:  make(map[string]*model.Context),
		lifecycle: newLifecycle(),
		graph:     newGraph(),
	}
}

func tsSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// CreateContext allocates a fresh context id for anchor (a process_start
// event), stamps it, writes it to the Raw Store, opens it in the
// lifecycle table, and records it as the context's first event — so a
// context that never receives another event still reports a non-empty
// event list at expiry (spec.md §8 scenario 1 counts the anchor among the
// context's events).
func (m *Manager) CreateContext(anchor model.RawEvent) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	contextID := "ctx-" + uuid.NewString()

	anchor.ContextID = contextID
	anchor.Timestamp = tsSeconds(now)

	ctx := &model.Context{
		ContextID:   contextID,
		Device:      m.device,
		User:        anchor.User,
		CreatedAt:   anchor.Timestamp,
		AnchorEvent: anchor,
		Status:      model.ContextActive,
	}
	m.contexts[contextID] = ctx
	m.lifecycle.open(contextID, now)
	m.graph.append(contextID, anchor)
	m.lastCreated = contextID

	if m.raw != nil {
		m.raw.Write(anchor)
	}

	return contextID
}

// AddEvent stamps event with contextID and the current time, appends it to
// the context's graph, and writes it to the Raw Store. Events attached to
// an unknown or already-closed context are written to the Raw Store (the
// raw journal is unconditional, spec.md §4.1) but otherwise dropped.
func (m *Manager) AddEvent(contextID string, event model.RawEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	event.ContextID = contextID
	event.Timestamp = tsSeconds(now)

	if m.raw != nil {
		m.raw.Write(event)
	}

	if _, ok := m.contexts[contextID]; !ok || m.lifecycle.isClosed(contextID) {
		return
	}
	m.graph.append(contextID, event)
}

// MostRecent returns the id of the most recently created context still
// active, for probes with no natural pid correlation (persistence,
// unauthorized access) that fall back to attaching onto whatever context
// is newest — the same heuristic
// original_source/agent-test/sentinel_agent/collectors/persistence_collector.py
// and access_collector.py use.
func (m *Manager) MostRecent() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastCreated == "" {
		return "", false
	}
	if _, ok := m.contexts[m.lastCreated]; !ok || m.lifecycle.isClosed(m.lastCreated) {
		return "", false
	}
	return m.lastCreated, true
}

// Active reports whether contextID is currently open.
func (m *Manager) Active(contextID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.contexts[contextID]
	return ok && !m.lifecycle.isClosed(contextID)
}

// CloseContext marks contextID closed without draining it. Idempotent.
// A closed context accepts no further events and stays in the table until
// it expires and drainExpired drains it. Forced shutdown does not use this
// method: Watch drains every context through drainAll on cancellation.
func (m *Manager) CloseContext(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycle.close(contextID)
}

// drainExpired scans the active table for contexts whose lifecycle has
// timed out, removes them from the contexts table, graph, and lifecycle,
// and returns their final snapshot (anchor + accumulated events) for the
// caller to hand to the clean pipeline.
func (m *Manager) drainExpired(now time.Time) []model.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []model.Context
	for id, ctx := range m.contexts {
		if !m.lifecycle.expired(id, now, m.timeout) {
			continue
		}
		events := m.graph.drain(id)
		ctx.Events = events
		ctx.Status = model.ContextClosed
		expired = append(expired, *ctx)

		delete(m.contexts, id)
		m.lifecycle.forget(id)
	}
	return expired
}

// drainAll force-closes every active context regardless of timeout, for
// graceful shutdown (spec.md §3).
func (m *Manager) drainAll() []model.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []model.Context
	for id, ctx := range m.contexts {
		events := m.graph.drain(id)
		ctx.Events = events
		ctx.Status = model.ContextClosed
		all = append(all, *ctx)

		delete(m.contexts, id)
		m.lifecycle.forget(id)
	}
	return all
}

// Watch runs the expiry watcher until ctx is canceled, ticking every
// tickInterval (spec.md default 1s) and handing every newly-expired
// context to onExpire. On ctx cancellation every still-active context is
// force-drained through onExpire before Watch returns, matching the
// agent's graceful-shutdown contract (spec.md §3).
func (m *Manager) Watch(ctx context.Context, tickInterval time.Duration, onExpire ExpiryHandler) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, c := range m.drainAll() {
				onExpire(c)
			}
			return
		case <-ticker.C:
			for _, c := range m.drainExpired(m.clk.Now()) {
				onExpire(c)
			}
		}
	}
}
