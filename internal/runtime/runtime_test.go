package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/claudeless/claudeless/internal/failure"
	"github.com/claudeless/claudeless/internal/hooks"
	"github.com/claudeless/claudeless/internal/permission"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/state"
	"github.com/claudeless/claudeless/internal/tools"
)

func TestBuildContextDefaults(t *testing.T) {
	rc := Build(nil, Params{}, nil)

	require.Equal(t, scenario.DefaultModel, rc.Model)
	require.Equal(t, scenario.DefaultClaudeVersion, rc.ClaudeVersion)
	require.Equal(t, scenario.DefaultUserName, rc.UserName)
	require.NotEqual(t, uuid.Nil, rc.SessionID)
	require.True(t, rc.Trusted)
	require.True(t, rc.LoggedIn)
	require.Equal(t, permission.ModeDefault, rc.PermissionMode)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, cwd, rc.WorkingDirectory)
	require.Equal(t, cwd, rc.ProjectPath)
}

func TestBuildContextScenarioValues(t *testing.T) {
	cfg := &scenario.Config{
		DefaultModel:     "claude-sonnet-4-5",
		ClaudeVersion:    "9.9.9",
		UserName:         "Batman",
		SessionID:        "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		WorkingDirectory: "/work/cave",
		ProjectPath:      "/work/project",
		PermissionMode:   "plan",
		LaunchTimestamp:  "2026-03-01T12:00:00Z",
	}

	rc := Build(cfg, Params{}, nil)

	require.Equal(t, "claude-sonnet-4-5", rc.Model)
	require.Equal(t, "9.9.9", rc.ClaudeVersion)
	require.Equal(t, "Batman", rc.UserName)
	require.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", rc.SessionID.String())
	require.Equal(t, "/work/cave", rc.WorkingDirectory)
	require.Equal(t, "/work/project", rc.ProjectPath)
	require.Equal(t, permission.ModePlan, rc.PermissionMode)
	require.Equal(t, 2026, rc.LaunchTimestamp.Year())
}

func TestBuildContextCLIWins(t *testing.T) {
	cfg := &scenario.Config{
		DefaultModel:     "scenario-model",
		ClaudeVersion:    "1.0.0",
		SessionID:        "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		WorkingDirectory: "/work/scenario",
	}
	params := Params{
		Model:            "cli-model",
		ClaudeVersion:    "2.0.0",
		SessionID:        "11111111-2222-3333-4444-555555555555",
		WorkingDirectory: "/work/cli",
	}

	rc := Build(cfg, params, nil)

	require.Equal(t, "cli-model", rc.Model)
	require.Equal(t, "2.0.0", rc.ClaudeVersion)
	require.Equal(t, "11111111-2222-3333-4444-555555555555", rc.SessionID.String())
	require.Equal(t, "/work/cli", rc.WorkingDirectory)
}

func TestBuildContextScenarioModeOverridesCLI(t *testing.T) {
	cfg := &scenario.Config{PermissionMode: "acceptEdits"}
	rc := Build(cfg, Params{PermissionMode: permission.ModePlan}, nil)
	require.Equal(t, permission.ModeAcceptEdits, rc.PermissionMode)
}

func compileEngine(t *testing.T, cfg *scenario.Config) *scenario.Engine {
	t.Helper()
	s, err := scenario.Compile(cfg)
	require.NoError(t, err)
	return scenario.NewEngine(s)
}

func newStateWriter(t *testing.T, rc *Context) *state.Writer {
	t.Helper()
	t.Setenv(state.EnvStateDir, t.TempDir())
	w, err := state.NewWriter(rc.SessionID.String(), rc.ProjectPath, rc.LaunchTimestamp, rc.Model, rc.ClaudeVersion, rc.WorkingDirectory)
	require.NoError(t, err)
	return w
}

func readSessionRecords(t *testing.T, w *state.Writer) []map[string]any {
	t.Helper()
	f, err := os.Open(w.SessionPath())
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func recordTypes(records []map[string]any) []string {
	types := make([]string, 0, len(records))
	for _, rec := range records {
		t, _ := rec["type"].(string)
		types = append(types, t)
	}
	return types
}

func TestExecuteNoScenario(t *testing.T) {
	rc := Build(nil, Params{}, nil)
	o := NewOrchestrator(rc, nil, tools.NewExecutor(scenario.ToolModeMock), nil, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "Hello! I'm Claudeless!", result.Text)
	require.Empty(t, result.Tools)
}

func TestExecuteSimpleTurnRecords(t *testing.T) {
	cfg := &scenario.Config{
		Name: "simple",
		Responses: []scenario.Rule{{
			Pattern:  scenario.PatternSpec{Type: scenario.PatternExact, Text: "ping"},
			Response: &scenario.ResponseSpec{Text: "pong"},
		}},
	}
	rc := Build(cfg, Params{}, nil)
	writer := newStateWriter(t, rc)
	o := NewOrchestrator(rc, compileEngine(t, cfg), tools.NewExecutor(scenario.ToolModeMock), writer, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "ping")
	require.NoError(t, err)
	require.Equal(t, "pong", result.Text)

	records := readSessionRecords(t, writer)
	require.Equal(t, []string{"user", "assistant"}, recordTypes(records))
}

func TestExecuteToolCallOrdering(t *testing.T) {
	cfg := &scenario.Config{
		Name: "tooling",
		Responses: []scenario.Rule{{
			Pattern: scenario.PatternSpec{Type: scenario.PatternContains, Text: "list"},
			Response: &scenario.ResponseSpec{
				Text: "Listing files",
				ToolCalls: []scenario.ToolCallSpec{{
					Tool:   "Bash",
					Input:  map[string]any{"command": "ls"},
					Result: "README.md",
				}},
			},
		}},
	}
	rc := Build(cfg, Params{}, nil)
	writer := newStateWriter(t, rc)
	o := NewOrchestrator(rc, compileEngine(t, cfg), tools.NewExecutor(scenario.ToolModeMock), writer, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "list the files")
	require.NoError(t, err)
	require.Equal(t, "Listing files", result.Text)
	require.Len(t, result.Tools, 1)
	require.Equal(t, "README.md", result.Tools[0].Result.Text())
	require.False(t, result.Tools[0].Result.IsError)

	// user, assistant text, assistant tool_use, tool result user line plus
	// its standalone result record, final assistant
	records := readSessionRecords(t, writer)
	require.Equal(t, []string{"user", "assistant", "assistant", "user", "result", "assistant"}, recordTypes(records))
}

func TestExecuteToolConfigResultFallback(t *testing.T) {
	cfg := &scenario.Config{
		Name: "canned",
		ToolExecution: &scenario.ToolExecutionConfig{
			Mode:  scenario.ToolModeMock,
			Tools: map[string]scenario.ToolConfig{"Bash": {Result: "canned output"}},
		},
		Responses: []scenario.Rule{{
			Pattern: scenario.PatternSpec{Type: scenario.PatternAny},
			Response: &scenario.ResponseSpec{
				ToolCalls: []scenario.ToolCallSpec{{Tool: "Bash", Input: map[string]any{"command": "true"}}},
			},
		}},
	}
	rc := Build(cfg, Params{}, nil)
	o := NewOrchestrator(rc, compileEngine(t, cfg), tools.NewExecutor(scenario.ToolModeMock), nil, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, result.Tools, 1)
	require.Equal(t, "canned output", result.Tools[0].Result.Text())
}

func TestExecuteFailureShortCircuits(t *testing.T) {
	cfg := &scenario.Config{
		Name: "failing",
		Responses: []scenario.Rule{{
			Pattern: scenario.PatternSpec{Type: scenario.PatternExact, Text: "boom"},
			Failure: &scenario.FailureSpec{Type: scenario.FailureRateLimit, RetryAfter: 30},
		}},
	}
	rc := Build(cfg, Params{}, nil)
	writer := newStateWriter(t, rc)
	o := NewOrchestrator(rc, compileEngine(t, cfg), tools.NewExecutor(scenario.ToolModeMock), writer, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	_, err := o.Execute(context.Background(), "boom")
	var failErr *FailureError
	require.ErrorAs(t, err, &failErr)
	require.Equal(t, scenario.FailureRateLimit, failErr.Spec.Type)

	data, err := os.ReadFile(writer.SessionPath())
	require.NoError(t, err)
	require.Contains(t, string(data), "rate_limit_error")
	require.Contains(t, string(data), "Rate limited. Retry after 30 seconds.")
	require.Contains(t, string(data), `"<synthetic>"`)
}

func TestExecutePendingPermission(t *testing.T) {
	cfg := &scenario.Config{
		Name: "gated",
		Responses: []scenario.Rule{{
			Pattern: scenario.PatternSpec{Type: scenario.PatternAny},
			Response: &scenario.ResponseSpec{
				ToolCalls: []scenario.ToolCallSpec{{
					Tool:   "Bash",
					Input:  map[string]any{"command": "rm -rf /"},
					Result: "gone",
				}},
			},
		}},
	}
	rc := Build(cfg, Params{}, nil)
	writer := newStateWriter(t, rc)
	executor := tools.NewPermissionCheckingExecutor(tools.NewExecutor(scenario.ToolModeMock), rc.Checker(permission.Bypass{}, nil))
	o := NewOrchestrator(rc, compileEngine(t, cfg), executor, writer, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "delete everything")
	require.NoError(t, err)
	require.NotNil(t, result.Pending)
	require.Equal(t, "Bash", result.Pending.Call.Tool)
	require.Equal(t, "execute", result.Pending.Action)
	require.Empty(t, result.Tools)

	// The tool_use record exists but no result does until resolution.
	records := readSessionRecords(t, writer)
	require.Equal(t, []string{"user", "assistant"}, recordTypes(records))

	res, err := o.ResolvePending(context.Background(), result.Pending, true)
	require.NoError(t, err)
	require.Equal(t, "gone", res.Text())
	require.False(t, res.IsError)

	records = readSessionRecords(t, writer)
	require.Equal(t, []string{"user", "assistant", "user", "result"}, recordTypes(records))
}

func TestResolvePendingDenied(t *testing.T) {
	cfg := &scenario.Config{
		Name: "gated",
		Responses: []scenario.Rule{{
			Pattern: scenario.PatternSpec{Type: scenario.PatternAny},
			Response: &scenario.ResponseSpec{
				ToolCalls: []scenario.ToolCallSpec{{Tool: "Bash", Input: map[string]any{"command": "ls"}, Result: "ok"}},
			},
		}},
	}
	rc := Build(cfg, Params{}, nil)
	executor := tools.NewPermissionCheckingExecutor(tools.NewExecutor(scenario.ToolModeMock), rc.Checker(permission.Bypass{}, nil))
	o := NewOrchestrator(rc, compileEngine(t, cfg), executor, nil, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "run it")
	require.NoError(t, err)
	require.NotNil(t, result.Pending)

	res, err := o.ResolvePending(context.Background(), result.Pending, false)
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, res.Text(), "rejected by user")
}

func TestExecuteSequencedTurns(t *testing.T) {
	cfg := &scenario.Config{
		Name: "sequence",
		Responses: []scenario.Rule{{
			Pattern: scenario.PatternSpec{Type: scenario.PatternExact, Text: "deploy"},
			Response: &scenario.ResponseSpec{
				Text: "Checking status first.",
				ToolCalls: []scenario.ToolCallSpec{{
					Tool:   "Bash",
					Input:  map[string]any{"command": "git status"},
					Result: "clean",
				}},
			},
			Turns: []scenario.Turn{{
				Expect:   scenario.PatternSpec{Type: scenario.PatternContains, Text: "clean"},
				Response: scenario.ResponseSpec{Text: "Deployed."},
			}},
		}},
	}
	rc := Build(cfg, Params{}, nil)
	o := NewOrchestrator(rc, compileEngine(t, cfg), tools.NewExecutor(scenario.ToolModeMock), nil, nil, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "deploy")
	require.NoError(t, err)
	require.Equal(t, "Checking status first.\nDeployed.", result.Text)
	require.Len(t, result.Tools, 1)
}

func writeHookScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\n"+body+"\n"), 0o755))
	return path
}

func TestStopHookContinuation(t *testing.T) {
	cfg := &scenario.Config{
		Name: "persistent",
		Responses: []scenario.Rule{{
			Pattern:  scenario.PatternSpec{Type: scenario.PatternAny},
			Response: &scenario.ResponseSpec{Text: "done"},
		}},
	}
	rc := Build(cfg, Params{}, nil)

	hookExec := hooks.NewExecutor(zerolog.Nop())
	hookExec.Register(hooks.EventStop, hooks.Config{
		ScriptPath: writeHookScript(t, `echo '{"decision":"block","reason":"keep going"}'`),
	})
	o := NewOrchestrator(rc, compileEngine(t, cfg), tools.NewExecutor(scenario.ToolModeMock), nil, hookExec, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "work")
	require.NoError(t, err)
	require.Equal(t, "keep going", result.HookContinuation)
	require.False(t, result.IsHookContinuation)

	// The continuation turn must not trigger the stop hook again.
	result, err = o.Execute(context.Background(), result.HookContinuation)
	require.NoError(t, err)
	require.True(t, result.IsHookContinuation)
	require.Empty(t, result.HookContinuation)
}

func TestPreToolHookBlocks(t *testing.T) {
	cfg := &scenario.Config{
		Name: "hooked",
		Responses: []scenario.Rule{{
			Pattern: scenario.PatternSpec{Type: scenario.PatternAny},
			Response: &scenario.ResponseSpec{
				ToolCalls: []scenario.ToolCallSpec{{Tool: "Bash", Input: map[string]any{"command": "ls"}, Result: "ok"}},
			},
		}},
	}
	rc := Build(cfg, Params{}, nil)

	hookExec := hooks.NewExecutor(zerolog.Nop())
	hookExec.Register(hooks.EventPreToolUse, hooks.Config{
		ScriptPath: writeHookScript(t, `echo "not on my watch" >&2; exit 2`),
	})
	o := NewOrchestrator(rc, compileEngine(t, cfg), tools.NewExecutor(scenario.ToolModeMock), nil, hookExec, scenario.ResolvedTimeouts{}, zerolog.Nop())

	result, err := o.Execute(context.Background(), "run ls")
	require.NoError(t, err)
	require.Len(t, result.Tools, 1)
	require.True(t, result.Tools[0].Result.IsError)
	require.Contains(t, result.Tools[0].Result.Text(), "not on my watch")
}

func TestDescribeFailureTexts(t *testing.T) {
	text, class, ok := failure.Describe(&scenario.FailureSpec{Type: scenario.FailureOutOfCredits})
	require.True(t, ok)
	require.Equal(t, "Billing error: No credits remaining", text)
	require.Equal(t, "billing_error", class)

	_, _, ok = failure.Describe(&scenario.FailureSpec{Type: scenario.FailureMalformedJSON})
	require.False(t, ok)
}
