package trust

import (
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust/rules"
)

// UpdateScore applies spec.md §4.8's score update law to the device's
// current trust score and returns the new value, clamped to [0, 100]
// (spec.md §3 invariant).
func UpdateScore(score float64, result Result, params Params) float64 {
	switch {
	case result.ScoreImpact > 0:
		score -= result.ScoreImpact
	case result.CompromisedActive:
		score += params.SlowRecoveryPerCycle
	case result.ReconActive:
		score += params.FastRecoveryPerCycle
	default:
		score += params.RecoveryPerCycle
	}
	return clamp(score)
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Feedback renders the human-readable string returned alongside the
// updated score (spec.md §4.8 "Feedback string"), in priority order.
func Feedback(result Result, score float64) string {
	switch {
	case result.ChainEscalated:
		return "CRITICAL: Correlated attack pattern"
	case result.ObservedSeverity == rules.SeverityCritical:
		return "CRITICAL: Threat detected"
	case result.ObservedSeverity == rules.SeverityHigh:
		return "WARNING: Suspicious activity"
	case result.ObservedSeverity == rules.SeverityMedium, result.ObservedSeverity == rules.SeverityLow:
		return "WARNING: Monitor activity"
	case score > 75:
		return "Secure"
	default:
		return "WARNING: Low trust score"
	}
}
