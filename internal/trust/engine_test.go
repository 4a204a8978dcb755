package trust

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust/rules"
)

func writeRules(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

const testRuleFile = `
rules:
  - name: recon_commands
    pattern: "whoami|net user|systeminfo"
    meta:
      severity: low
  - name: mimikatz_like
    pattern: "mimikatz|sekurlsa"
    meta:
      severity: critical
  - name: reverse_shell
    pattern: "nc -e|/bin/sh -i"
    meta:
      severity: high
`

func newTestEngine(t *testing.T, params Params) *Engine {
	path := writeRules(t, testRuleFile)
	re, err := rules.Load(path)
	require.NoError(t, err)
	return New(re, params, []string{"systemd", "chrome"})
}

func cmdEvent(cmdline string) model.CleanEvent {
	return model.CleanEvent{
		EventType: model.EventProcessStart,
		Timestamp: 1,
		Details:   map[string]interface{}{"cmdline": cmdline},
	}
}

func TestCooldownSuppressesRepeatedPenaltyWithinWindow(t *testing.T) {
	params := DefaultParams()
	e := newTestEngine(t, params)

	base := time.Unix(1000, 0)
	r1 := e.Evaluate("dev-1", []model.CleanEvent{cmdEvent("mimikatz.exe")}, base)
	assert.Equal(t, 20.0, r1.ScoreImpact)

	r2 := e.Evaluate("dev-1", []model.CleanEvent{cmdEvent("mimikatz.exe")}, base.Add(10*time.Second))
	assert.Equal(t, 0.0, r2.ScoreImpact, "second detection within cooldown must not re-penalize")
	assert.Equal(t, rules.SeverityCritical, r2.ObservedSeverity, "observed severity still recorded")

	r3 := e.Evaluate("dev-1", []model.CleanEvent{cmdEvent("mimikatz.exe")}, base.Add(20*time.Second))
	assert.Equal(t, 0.0, r3.ScoreImpact)

	r4 := e.Evaluate("dev-1", []model.CleanEvent{cmdEvent("mimikatz.exe")}, base.Add(46*time.Second))
	assert.Equal(t, 20.0, r4.ScoreImpact, "cooldown expired, penalty applies again")
}

func TestChainEscalationAddsBonusAndExtendsCompromise(t *testing.T) {
	params := DefaultParams()
	e := newTestEngine(t, params)

	base := time.Unix(2000, 0)
	a := e.Evaluate("dev-2", []model.CleanEvent{cmdEvent("whoami")}, base)
	assert.Equal(t, 5.0, a.ScoreImpact)
	assert.True(t, a.SawRecon)
	assert.False(t, a.SawAttack)

	tB := base.Add(10 * time.Second)
	b := e.Evaluate("dev-2", []model.CleanEvent{cmdEvent("nc -e /bin/sh")}, tB)
	assert.True(t, b.SawAttack)
	assert.True(t, b.ChainEscalated)
	assert.Equal(t, 20.0, b.ScoreImpact, "15 high penalty + 5 chain escalation bonus")
	assert.True(t, b.CompromisedActive)
}

func TestRecoveryModes(t *testing.T) {
	params := DefaultParams()
	e := newTestEngine(t, params)

	base := time.Unix(3000, 0)

	// Seed a compromised state via a high-severity detection.
	e.Evaluate("dev-3", []model.CleanEvent{cmdEvent("nc -e /bin/sh")}, base)

	benign := e.Evaluate("dev-3", []model.CleanEvent{cmdEvent("ls -la")}, base.Add(1*time.Second))
	assert.Equal(t, 0.0, benign.ScoreImpact)
	score := UpdateScore(50.0, benign, params)
	assert.InDelta(t, 50.2, score, 1e-9)
}

func TestUpdateScoreClampsToRange(t *testing.T) {
	params := DefaultParams()
	r := Result{ScoreImpact: 200}
	assert.Equal(t, 0.0, UpdateScore(50, r, params))

	r2 := Result{ScoreImpact: 0}
	assert.Equal(t, 100.0, UpdateScore(99.5, r2, params))
}

func TestAllowlistedProcessSkipsDetection(t *testing.T) {
	params := DefaultParams()
	e := newTestEngine(t, params)
	r := e.Evaluate("dev-4", []model.CleanEvent{
		{EventType: model.EventProcessStart, ProcessName: "systemd", Details: map[string]interface{}{"cmdline": "mimikatz.exe"}},
	}, time.Unix(4000, 0))
	assert.Equal(t, 0.0, r.ScoreImpact)
	assert.Equal(t, rules.SeverityNone, r.ObservedSeverity)
}

func TestSynProbeWithoutAckIsRecon(t *testing.T) {
	params := DefaultParams()
	e := newTestEngine(t, params)
	ev := model.CleanEvent{
		EventType: "network_connection",
		Timestamp: 1,
		Details:   map[string]interface{}{"flags": "SYN"},
	}
	r := e.Evaluate("dev-5", []model.CleanEvent{ev}, time.Unix(5000, 0))
	assert.True(t, r.SawRecon)
	assert.Equal(t, rules.SeverityLow, r.ObservedSeverity)
	assert.Equal(t, 5.0, r.ScoreImpact)
}

func TestFeedbackPriority(t *testing.T) {
	assert.Equal(t, "CRITICAL: Correlated attack pattern", Feedback(Result{ChainEscalated: true}, 10))
	assert.Equal(t, "CRITICAL: Threat detected", Feedback(Result{ObservedSeverity: rules.SeverityCritical}, 10))
	assert.Equal(t, "WARNING: Suspicious activity", Feedback(Result{ObservedSeverity: rules.SeverityHigh}, 10))
	assert.Equal(t, "WARNING: Monitor activity", Feedback(Result{ObservedSeverity: rules.SeverityLow}, 10))
	assert.Equal(t, "Secure", Feedback(Result{}, 80))
	assert.Equal(t, "WARNING: Low trust score", Feedback(Result{}, 40))
}
