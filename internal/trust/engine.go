// Package trust is the server's Trust Engine (spec.md §4.8): rule match
// against an allowlist-filtered event stream, per-signature cooldown,
// per-device recon/attack-chain correlation, and the score update law. No
// file elsewhere in this codebase implements a risk score; this package's control-flow shape
// (narrow-capability components, each owning its own mutex, constructed
// by the caller so tests get isolated instances) is grounded on spec.md
// Design Notes directly and on the "component owns its lock" convention
// seen throughout packages/go-core/natsclient.
package trust

import (
	"strings"
	"time"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust/rules"
)

// Params bundles the tunables spec.md §6 exposes as environment
// variables, all with the §4.8 defaults.
type Params struct {
	AlertCooldown        time.Duration
	ReconContext         time.Duration
	CompromisedRecovery  time.Duration
	ChainEscalationBonus float64
	RecoveryPerCycle     float64
	SlowRecoveryPerCycle float64
	FastRecoveryPerCycle float64
}

// DefaultParams returns spec.md §4.8's documented defaults.
func DefaultParams() Params {
	return Params{
		AlertCooldown:        45 * time.Second,
		ReconContext:         30 * time.Second,
		CompromisedRecovery:  120 * time.Second,
		ChainEscalationBonus: 5.0,
		RecoveryPerCycle:     1.2,
		SlowRecoveryPerCycle: 0.2,
		FastRecoveryPerCycle: 3.0,
	}
}

// Result is what the ingest handler needs back from one Evaluate call to
// drive the score update law (spec.md §4.7 step 4-5).
type Result struct {
	ObservedSeverity  rules.Severity
	ScoreImpact       float64
	SawRecon          bool
	SawAttack         bool
	ChainEscalated    bool
	CompromisedActive bool
	ReconActive       bool
}

// Engine evaluates one device's payload of clean events against the rule
// engine, the signature cooldown cache, and the device risk state.
type Engine struct {
	rules     *rules.Engine
	cooldown  *CooldownCache
	risk      *RiskState
	allowlist map[string]struct{}
	params    Params
}

// New constructs an Engine. ruleEngine may be rules.Disabled() when the
// rule file failed to load (spec.md §7) — every event then simply
// produces no match. allowlist entries are matched case-insensitively.
func New(ruleEngine *rules.Engine, params Params, allowlist []string) *Engine {
	al := make(map[string]struct{}, len(allowlist))
	for _, p := range allowlist {
		al[strings.ToLower(p)] = struct{}{}
	}
	return &Engine{
		rules:     ruleEngine,
		cooldown:  NewCooldownCache(params.AlertCooldown),
		risk:      NewRiskState(),
		allowlist: al,
		params:    params,
	}
}

// Params returns the engine's configured thresholds, for callers applying
// the score update law (spec.md §4.8).
func (e *Engine) Params() Params {
	return e.params
}

func (e *Engine) isAllowlisted(name string) bool {
	if name == "" {
		return false
	}
	_, ok := e.allowlist[strings.ToLower(name)]
	return ok
}

// Evaluate runs the full §4.8 pipeline for one device's batch of clean
// events: allowlist filter, rule match, cooldown-gated penalty, recon/SYN
// classification, and correlation/chain-escalation state transition.
func (e *Engine) Evaluate(deviceID string, events []model.CleanEvent, now time.Time) Result {
	var (
		observed            rules.Severity
		impact              float64
		sawRecon, sawAttack bool
	)

	for _, ev := range events {
		name := processName(ev)
		if e.isAllowlisted(name) {
			continue
		}

		if rule, ok := e.rules.Match(processSubject(ev)); ok {
			observed = observed.Max(rule.Severity)
			if rule.Name == "recon_commands" || rule.Severity == rules.SeverityLow {
				sawRecon = true
			}
			if rule.Severity >= rules.SeverityMedium {
				sawAttack = true
			}
			if e.cooldown.Allow(deviceID, rule.Name, now) && rule.Severity.Penalty() > impact {
				impact = rule.Severity.Penalty()
			}
		}

		if isSynProbe(ev) {
			sawRecon = true
			observed = observed.Max(rules.SeverityLow)
			if e.cooldown.Allow(deviceID, "syn_probe", now) && rules.SeverityLow.Penalty() > impact {
				impact = rules.SeverityLow.Penalty()
			}
		}
	}

	update := e.risk.Update(deviceID, now, sawRecon, sawAttack, observed, e.params)
	if update.ChainEscalated {
		impact += e.params.ChainEscalationBonus
	}

	return Result{
		ObservedSeverity:  observed,
		ScoreImpact:       impact,
		SawRecon:          sawRecon,
		SawAttack:         sawAttack,
		ChainEscalated:    update.ChainEscalated,
		CompromisedActive: update.CompromisedActive,
		ReconActive:       update.ReconActive,
	}
}

// GC sweeps the cooldown cache and risk state, called on a cron schedule
// by cmd/ingestd (spec.md §3).
func (e *Engine) GC(now time.Time) {
	e.cooldown.GC(now)
	longest := e.params.CompromisedRecovery
	if e.params.ReconContext > longest {
		longest = e.params.ReconContext
	}
	e.risk.GC(now, 4*longest)
}

// processName extracts the subject process name for allowlist matching:
// the CleanEvent's own field, falling back to details.process_name.
func processName(ev model.CleanEvent) string {
	if ev.ProcessName != "" {
		return ev.ProcessName
	}
	if v, ok := ev.Details["process_name"].(string); ok {
		return v
	}
	return ""
}

// processSubject returns the string the rule engine matches against:
// cmdline if present, else process_name (spec.md §4.8).
func processSubject(ev model.CleanEvent) string {
	if v, ok := ev.Details["cmdline"].(string); ok && v != "" {
		return v
	}
	return processName(ev)
}

// synNetworkEventTypes are the event_type spellings the SYN-probe
// heuristic recognizes (spec.md §4.8). It overlaps with, but is not the
// same as, the classifier's network-connect alias set in internal/model:
// it adds network_event and does not include network_connect.
var synNetworkEventTypes = map[model.EventType]struct{}{
	"network_connection": {},
	"network_event":       {},
	"network_activity":    {},
}

// isSynProbe reports whether ev is a network event whose flags contain
// SYN but not ACK (spec.md §4.8 recon classification).
func isSynProbe(ev model.CleanEvent) bool {
	if _, ok := synNetworkEventTypes[ev.EventType]; !ok {
		return false
	}
	flags, _ := ev.Details["flags"].(string)
	flags = strings.ToUpper(flags)
	return strings.Contains(flags, "SYN") && !strings.Contains(flags, "ACK")
}
