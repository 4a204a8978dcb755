package trust

import (
	"sync"
	"time"

	"github.com/Vamsirusheel01/sentinel-ai/internal/trust/rules"
)

// deadlines is the server's per-device Device Risk State (spec.md §3):
// three monotone deadlines plus the last time the device was observed.
type deadlines struct {
	reconUntil       time.Time
	reconOnlyUntil   time.Time
	compromisedUntil time.Time
	lastSeen         time.Time
}

// RiskState tracks correlation/chain-escalation deadlines for every
// device, guarded by a single mutex (spec.md Design Notes).
type RiskState struct {
	mu      sync.Mutex
	devices map[string]*deadlines
}

// NewRiskState constructs an empty RiskState.
func NewRiskState() *RiskState {
	return &RiskState{devices: make(map[string]*deadlines)}
}

// UpdateResult reports the per-device state transitions spec.md §4.8
// prescribes, and the post-update deadline activity the score update law
// reads.
type UpdateResult struct {
	ChainEscalated    bool
	CompromisedActive bool
	ReconActive       bool
}

// Update applies the correlation and chain-escalation transitions for one
// processed payload (spec.md §4.8 "Correlation & chain escalation") and
// reports the resulting deadline state for the score law.
func (r *RiskState) Update(deviceID string, now time.Time, sawRecon, sawAttack bool, observed rules.Severity, params Params) UpdateResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		d = &deadlines{}
		r.devices[deviceID] = d
	}
	d.lastSeen = now

	var chainEscalated bool
	if sawAttack && !d.reconOnlyUntil.IsZero() && !now.After(d.reconOnlyUntil) {
		chainEscalated = true
		extendTo(&d.compromisedUntil, now.Add(params.CompromisedRecovery))
	}

	if sawRecon {
		newRecon := now.Add(params.ReconContext)
		extendTo(&d.reconUntil, newRecon)
		if !sawAttack {
			extendTo(&d.reconOnlyUntil, newRecon)
		} else {
			d.reconOnlyUntil = time.Time{}
		}
	}

	if observed == rules.SeverityHigh || observed == rules.SeverityCritical {
		extendTo(&d.compromisedUntil, now.Add(params.CompromisedRecovery))
	}

	return UpdateResult{
		ChainEscalated:    chainEscalated,
		CompromisedActive: !now.After(d.compromisedUntil),
		ReconActive:       !now.After(d.reconUntil),
	}
}

// extendTo sets *deadline to candidate if candidate is later than the
// current value — deadlines only ever move forward (spec.md §4.8 "extend
// X := max(X, ...)").
func extendTo(deadline *time.Time, candidate time.Time) {
	if candidate.After(*deadline) {
		*deadline = candidate
	}
}

// GC removes devices whose lastSeen is older than ttl, the greater of 4x
// any configured deadline (spec.md §3 "GC'd once stale for 4x the longest
// deadline").
func (r *RiskState) GC(now time.Time, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.devices {
		if now.Sub(d.lastSeen) > ttl {
			delete(r.devices, id)
		}
	}
}

// Len reports the number of tracked devices, for tests.
func (r *RiskState) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}
