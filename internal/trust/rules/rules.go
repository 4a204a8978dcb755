// Package rules implements the rule-based detection engine the Trust
// Engine calls for every event (spec.md §4.8, §6 "Rule file"): a YAML
// file loaded once at startup, each rule matching a regular expression
// against a process's cmdline (or process_name if cmdline is absent) and
// producing a severity. Grounded on spec.md §6's description of the
// opaque rule file's shape ("each rule has a name and meta.severity") and
// the original's several backend rule-matching variants, which all key
// off a regex-over-cmdline pattern; no file elsewhere in this codebase implements this exact
// component, so the YAML schema and loader are built directly from
// spec.md. Libraries: gopkg.in/yaml.v3 (already pulled in transitively by
// viper, reused here rather than adding a second YAML library).
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity is the detection severity produced by a rule match, ordered
// none < low < medium < high < critical (spec.md §4.8).
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// ParseSeverity maps the YAML rule file's string severity onto Severity.
// Unrecognized strings resolve to SeverityNone rather than erroring — a
// malformed single rule should not take down the whole engine.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityNone
	}
}

// String renders Severity the way feedback strings and logs want it.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// Penalty returns the score penalty for s (spec.md §4.8 severity penalty
// table).
func (s Severity) Penalty() float64 {
	switch s {
	case SeverityLow:
		return 5.0
	case SeverityMedium:
		return 10.0
	case SeverityHigh:
		return 15.0
	case SeverityCritical:
		return 20.0
	default:
		return 0.0
	}
}

// Max returns the more severe of s and other.
func (s Severity) Max(other Severity) Severity {
	if other > s {
		return other
	}
	return s
}

// rawRule is the on-disk YAML shape: {name, pattern, meta: {severity}}.
type rawRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Meta    struct {
		Severity string `yaml:"severity"`
	} `yaml:"meta"`
}

type ruleFile struct {
	Rules []rawRule `yaml:"rules"`
}

// Rule is one compiled detection rule.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
}

// Engine matches cmdlines against a fixed, ordered set of compiled rules.
// A nil/empty Engine always reports no match — the "engine disabled"
// state spec.md §7 describes for a malformed rule file.
type Engine struct {
	rules []Rule
}

// Load reads and compiles the rule file at path. A rule whose pattern
// fails to compile is skipped silently (nothing reports it), not fatal to the
// whole file — only a totally unreadable/unparseable file disables the
// engine (spec.md §7 "Malformed rule file at startup: engine disabled").
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}

	engine := &Engine{}
	for _, r := range rf.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			continue // one bad pattern doesn't disable the whole engine
		}
		engine.rules = append(engine.rules, Rule{
			Name:     r.Name,
			Pattern:  re,
			Severity: ParseSeverity(r.Meta.Severity),
		})
	}
	return engine, nil
}

// Disabled constructs an Engine with no rules, used when the rule file
// fails to load at all (spec.md §7).
func Disabled() *Engine {
	return &Engine{}
}

// Match runs subject (cmdline, or process_name as fallback) against every
// compiled rule in file order and returns the first match.
func (e *Engine) Match(subject string) (Rule, bool) {
	if e == nil {
		return Rule{}, false
	}
	for _, r := range e.rules {
		if r.Pattern.MatchString(subject) {
			return r, true
		}
	}
	return Rule{}, false
}
