package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func compileRules(t *testing.T, rules ...Rule) *Engine {
	t.Helper()
	cfg := &Config{Responses: rules}
	require.NoError(t, cfg.Validate())
	s, err := Compile(cfg)
	require.NoError(t, err)
	return NewEngine(s)
}

func simple(text string) *ResponseSpec {
	return &ResponseSpec{Text: text}
}

func TestMatchPromptFirstRuleWins(t *testing.T) {
	e := compileRules(t,
		Rule{Pattern: PatternSpec{Type: PatternContains, Text: "hello"}, Response: simple("first")},
		Rule{Pattern: PatternSpec{Type: PatternAny}, Response: simple("second")},
	)

	m := e.MatchPrompt("well hello there")
	require.Equal(t, MatchRule, m.Kind)
	require.Equal(t, 0, m.Rule)
	require.Equal(t, "first", e.Response(m).Text)

	m = e.MatchPrompt("something else")
	require.Equal(t, 1, m.Rule)
	require.Equal(t, "second", e.Response(m).Text)
}

func TestMatchPromptMaxMatches(t *testing.T) {
	e := compileRules(t,
		Rule{
			Pattern:    PatternSpec{Type: PatternExact, Text: "hi"},
			Response:   simple("limited"),
			MaxMatches: 2,
		},
		Rule{Pattern: PatternSpec{Type: PatternAny}, Response: simple("fallback")},
	)

	require.Equal(t, "limited", e.Response(e.MatchPrompt("hi")).Text)
	require.Equal(t, "limited", e.Response(e.MatchPrompt("hi")).Text)
	// Third match falls through to the catch-all rule.
	require.Equal(t, "fallback", e.Response(e.MatchPrompt("hi")).Text)

	e.ResetCounts()
	require.Equal(t, "limited", e.Response(e.MatchPrompt("hi")).Text)
}

func TestMatchPromptDefaultResponse(t *testing.T) {
	cfg := &Config{
		DefaultResponse: simple("default"),
		Responses: []Rule{
			{Pattern: PatternSpec{Type: PatternExact, Text: "known"}, Response: simple("known response")},
		},
	}
	s, err := Compile(cfg)
	require.NoError(t, err)
	e := NewEngine(s)

	m := e.MatchPrompt("unknown")
	require.Equal(t, MatchDefault, m.Kind)
	require.Equal(t, "default", e.Response(m).Text)
}

func TestMatchPromptNoMatch(t *testing.T) {
	e := compileRules(t,
		Rule{Pattern: PatternSpec{Type: PatternExact, Text: "known"}, Response: simple("ok")},
	)
	m := e.MatchPrompt("unknown")
	require.Equal(t, MatchNone, m.Kind)
	require.False(t, m.Matched())
	require.Nil(t, e.Response(m))
}

func TestMatchPromptSequencedTurns(t *testing.T) {
	e := compileRules(t,
		Rule{
			Pattern:  PatternSpec{Type: PatternExact, Text: "start"},
			Response: simple("entry"),
			Turns: []Turn{
				{Expect: PatternSpec{Type: PatternContains, Text: "step one"}, Response: ResponseSpec{Text: "turn 1"}},
				{Expect: PatternSpec{Type: PatternAny}, Response: ResponseSpec{Text: "turn 2"}},
			},
		},
		Rule{Pattern: PatternSpec{Type: PatternAny}, Response: simple("other")},
	)

	m := e.MatchPrompt("start")
	require.Equal(t, MatchRule, m.Kind)
	require.Equal(t, "entry", e.Response(m).Text)

	m = e.MatchPrompt("did step one")
	require.Equal(t, MatchTurn, m.Kind)
	require.Equal(t, 0, m.Turn)
	require.Equal(t, "turn 1", e.Response(m).Text)

	m = e.MatchPrompt("anything")
	require.Equal(t, MatchTurn, m.Kind)
	require.Equal(t, 1, m.Turn)
	require.Equal(t, "turn 2", e.Response(m).Text)

	// Sequence cleared after the final turn; back to regular matching.
	m = e.MatchPrompt("anything")
	require.Equal(t, MatchRule, m.Kind)
	require.Equal(t, 1, m.Rule)
}

func TestMatchPromptSequenceAbandonedOnMismatch(t *testing.T) {
	e := compileRules(t,
		Rule{
			Pattern:  PatternSpec{Type: PatternExact, Text: "start"},
			Response: simple("entry"),
			Turns: []Turn{
				{Expect: PatternSpec{Type: PatternExact, Text: "expected"}, Response: ResponseSpec{Text: "turn"}},
			},
		},
		Rule{Pattern: PatternSpec{Type: PatternAny}, Response: simple("regular")},
	)

	e.MatchPrompt("start")
	m := e.MatchPrompt("unexpected")
	require.Equal(t, MatchRule, m.Kind)
	require.Equal(t, 1, m.Rule)

	// Abandoned sequence does not resume.
	m = e.MatchPrompt("expected")
	require.Equal(t, 1, m.Rule)
}

func TestFailureLookup(t *testing.T) {
	e := compileRules(t,
		Rule{
			Pattern: PatternSpec{Type: PatternExact, Text: "boom"},
			Failure: &FailureSpec{Type: FailureRateLimit, RetryAfter: 60},
		},
	)
	m := e.MatchPrompt("boom")
	require.True(t, m.Matched())
	require.Nil(t, e.Response(m))
	f := e.Failure(m)
	require.NotNil(t, f)
	require.Equal(t, FailureRateLimit, f.Type)
	require.EqualValues(t, 60, f.RetryAfter)
}

func TestLoadTOMLScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.toml")
	content := `
name = "demo"
default_response = "fallback"

[[responses]]
pattern = { type = "exact", text = "hello" }
response = "Hi!"

[[responses]]
pattern = { type = "regex", pattern = "^deploy" }
max_matches = 1

[responses.failure]
type = "auth_error"
message = "bad key"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "demo", s.Name())
	require.Equal(t, "fallback", s.Config.DefaultResponse.Text)
	require.Len(t, s.Config.Responses, 2)

	e := NewEngine(s)
	m := e.MatchPrompt("hello")
	require.Equal(t, "Hi!", e.Response(m).Text)

	m = e.MatchPrompt("deploy to prod")
	require.Equal(t, FailureAuthError, e.Failure(m).Type)
	require.Equal(t, "bad key", e.Failure(m).Message)
}

func TestLoadJSONScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	content := `{
	  "name": "json-demo",
	  "responses": [
	    {
	      "pattern": {"type": "contains", "text": "tool"},
	      "response": {
	        "text": "running tool",
	        "tool_calls": [{"tool": "Read", "input": {"file_path": "/tmp/x"}}]
	      }
	    }
	  ]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	e := NewEngine(s)
	m := e.MatchPrompt("use the tool")
	resp := e.Response(m)
	require.Equal(t, "running tool", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "Read", resp.ToolCalls[0].Tool)
	require.Equal(t, "/tmp/x", resp.ToolCalls[0].Input["file_path"])
}

func TestLoadResolvesFileReferences(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.md"), []byte("# The Plan"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.json"), []byte(`{"nested": true}`), 0o600))

	path := filepath.Join(dir, "scenario.toml")
	content := `
[[responses]]
pattern = { type = "any" }

[responses.response]
text = "planned"

[[responses.response.tool_calls]]
tool = "ExitPlanMode"

[responses.response.tool_calls.input]
plan = { "$file" = "plan.md" }
extra = { "$file" = "input.json" }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	input := s.Config.Responses[0].Response.ToolCalls[0].Input
	require.Equal(t, "# The Plan", input["plan"])
	require.Equal(t, map[string]any{"nested": true}, input["extra"])
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	cases := map[string]string{
		"bad regex":     `[[responses]]` + "\n" + `pattern = { type = "regex", pattern = "([" }` + "\n" + `response = "x"`,
		"bad uuid":      `session_id = "not-a-uuid"`,
		"bad timestamp": `launch_timestamp = "yesterday"`,
		"bad mode":      `permission_mode = "yolo"`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoadScenarioDirectoryMergesRules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.toml"), []byte(`
name = "merged"
[[responses]]
pattern = { type = "exact", text = "one" }
response = "first file"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.toml"), []byte(`
[[responses]]
pattern = { type = "exact", text = "two" }
response = "second file"
`), 0o600))

	s, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "merged", s.Name())
	require.Len(t, s.Config.Responses, 2)

	e := NewEngine(s)
	require.Equal(t, "first file", e.Response(e.MatchPrompt("one")).Text)
	require.Equal(t, "second file", e.Response(e.MatchPrompt("two")).Text)
}
