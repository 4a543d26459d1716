package scenario

import (
	"fmt"
)

// Scenario is a compiled, immutable scenario. All mutable matching state
// lives in Engine so a single compiled scenario can be shared across tests.
type Scenario struct {
	// Config is the validated source configuration.
	Config *Config

	rules []compiledRule
}

type compiledRule struct {
	pattern Pattern
	turns   []Pattern
}

// Load reads, validates, and compiles a scenario file or directory.
func Load(path string) (*Scenario, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Compile(cfg)
}

// Compile builds a Scenario from an already-validated config.
func Compile(cfg *Config) (*Scenario, error) {
	s := &Scenario{Config: cfg}
	for i, rule := range cfg.Responses {
		pat, err := CompilePattern(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("responses[%d]: %w", i, err)
		}
		compiled := compiledRule{pattern: pat}
		for j, turn := range rule.Turns {
			tp, err := CompilePattern(turn.Expect)
			if err != nil {
				return nil, fmt.Errorf("responses[%d].turns[%d]: %w", i, j, err)
			}
			compiled.turns = append(compiled.turns, tp)
		}
		s.rules = append(s.rules, compiled)
	}
	return s, nil
}

// Name returns the scenario name.
func (s *Scenario) Name() string { return s.Config.Name }

// MatchKind tags the outcome of a prompt match.
type MatchKind int

const (
	// MatchNone means no rule or default applied.
	MatchNone MatchKind = iota
	// MatchRule means a top-level rule matched.
	MatchRule
	// MatchTurn means a sequenced follow-up turn matched.
	MatchTurn
	// MatchDefault means the default response applied.
	MatchDefault
)

// MatchResult identifies which rule, turn, or default claimed a prompt.
type MatchResult struct {
	// Kind tags the outcome.
	Kind MatchKind
	// Rule indexes Config.Responses for MatchRule and MatchTurn.
	Rule int
	// Turn indexes the rule's Turns for MatchTurn.
	Turn int
}

// Matched reports whether any response or failure applies.
func (m MatchResult) Matched() bool { return m.Kind != MatchNone }

// Engine pairs an immutable Scenario with its mutable matching state:
// per-rule match counts and the sequenced-turn cursor.
type Engine struct {
	scenario *Scenario

	counts []int
	// seqRule/seqTurn form the cursor of an armed turn sequence.
	// seqRule is -1 when no sequence is active.
	seqRule int
	seqTurn int
}

// NewEngine creates matching state for a compiled scenario.
func NewEngine(s *Scenario) *Engine {
	return &Engine{
		scenario: s,
		counts:   make([]int, len(s.rules)),
		seqRule:  -1,
	}
}

// Scenario returns the underlying compiled scenario.
func (e *Engine) Scenario() *Scenario { return e.scenario }

// MatchPrompt selects the response rule, sequenced turn, or default that
// claims the prompt.
//
// If a turn sequence is active, the next turn's pattern is tried first; on
// match the cursor advances (and clears after the final turn). On mismatch
// the sequence is abandoned and regular matching proceeds. Regular matching
// scans rules in declaration order, skipping rules that have exhausted
// max_matches; the first hit increments its count and arms its sequence
// when the rule has follow-up turns.
func (e *Engine) MatchPrompt(prompt string) MatchResult {
	if e.seqRule >= 0 {
		rule := e.scenario.rules[e.seqRule]
		if e.seqTurn < len(rule.turns) && rule.turns[e.seqTurn].Match(prompt) {
			result := MatchResult{Kind: MatchTurn, Rule: e.seqRule, Turn: e.seqTurn}
			e.seqTurn++
			if e.seqTurn >= len(rule.turns) {
				e.seqRule = -1
			}
			return result
		}
		e.seqRule = -1
	}

	for i, rule := range e.scenario.rules {
		spec := e.scenario.Config.Responses[i]
		if spec.MaxMatches > 0 && e.counts[i] >= spec.MaxMatches {
			continue
		}
		if rule.pattern.Match(prompt) {
			e.counts[i]++
			if len(rule.turns) > 0 {
				e.seqRule = i
				e.seqTurn = 0
			}
			return MatchResult{Kind: MatchRule, Rule: i}
		}
	}

	if e.scenario.Config.DefaultResponse != nil {
		return MatchResult{Kind: MatchDefault}
	}
	return MatchResult{Kind: MatchNone}
}

// Response returns the response payload for a match, or nil when the match
// carries only a failure (or nothing).
func (e *Engine) Response(m MatchResult) *ResponseSpec {
	switch m.Kind {
	case MatchRule:
		return e.scenario.Config.Responses[m.Rule].Response
	case MatchTurn:
		return &e.scenario.Config.Responses[m.Rule].Turns[m.Turn].Response
	case MatchDefault:
		return e.scenario.Config.DefaultResponse
	default:
		return nil
	}
}

// Failure returns the failure payload for a match, or nil.
func (e *Engine) Failure(m MatchResult) *FailureSpec {
	switch m.Kind {
	case MatchRule:
		return e.scenario.Config.Responses[m.Rule].Failure
	case MatchTurn:
		return e.scenario.Config.Responses[m.Rule].Turns[m.Turn].Failure
	default:
		return nil
	}
}

// SequenceActive reports whether a turn sequence is armed, i.e. the next
// prompt will be tried against a sequenced follow-up turn first.
func (e *Engine) SequenceActive() bool { return e.seqRule >= 0 }

// ResetCounts clears match counts and abandons any active turn sequence.
// Tests sharing one compiled scenario call this between cases.
func (e *Engine) ResetCounts() {
	for i := range e.counts {
		e.counts[i] = 0
	}
	e.seqRule = -1
	e.seqTurn = 0
}

// ToolConfigFor returns the per-tool override for a tool name, if any.
func (e *Engine) ToolConfigFor(tool string) (ToolConfig, bool) {
	te := e.scenario.Config.ToolExecution
	if te == nil {
		return ToolConfig{}, false
	}
	cfg, ok := te.Tools[tool]
	return cfg, ok
}
