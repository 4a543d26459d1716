package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/claudeless/claudeless/internal/config"
	"github.com/claudeless/claudeless/internal/output"
	"github.com/claudeless/claudeless/internal/runtime"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/tools"
)

// TestReadStreamJSONPrompt verifies user messages are collected and joined.
func TestReadStreamJSONPrompt(testingHandle *testing.T) {
	input := strings.Join([]string{
		`{"type":"system","message":{"role":"system","content":"ignored"}}`,
		`{"type":"user","message":{"role":"user","content":"first line"}}`,
		``,
		`{"type":"user","message":{"role":"user","content":[{"type":"text","text":"second"},{"type":"image"},{"type":"text","text":"third"}]}}`,
	}, "\n")

	prompt, err := readStreamJSONPrompt(strings.NewReader(input))
	if err != nil {
		testingHandle.Fatalf("read failed: %v", err)
	}
	if prompt != "first line\nsecond\nthird" {
		testingHandle.Fatalf("unexpected prompt: %q", prompt)
	}
}

// TestReadStreamJSONPromptNoUser verifies the no-user-message error.
func TestReadStreamJSONPromptNoUser(testingHandle *testing.T) {
	input := `{"type":"system","message":{"role":"system","content":"boot"}}`

	_, err := readStreamJSONPrompt(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "no user messages") {
		testingHandle.Fatalf("expected no-user-messages error, got %v", err)
	}
}

// TestReadStreamJSONPromptMalformed verifies parse errors are surfaced.
func TestReadStreamJSONPromptMalformed(testingHandle *testing.T) {
	_, err := readStreamJSONPrompt(strings.NewReader(`{"type":`))
	if err == nil || !strings.Contains(err.Error(), "parse stream-json input") {
		testingHandle.Fatalf("expected parse error, got %v", err)
	}
}

// TestContentText covers the string and block-array content shapes.
func TestContentText(testingHandle *testing.T) {
	if got := contentText(json.RawMessage(`"plain"`)); got != "plain" {
		testingHandle.Fatalf("string content: %q", got)
	}
	blocks := json.RawMessage(`[{"type":"text","text":"a"},{"type":"tool_use"},{"type":"text","text":"b"}]`)
	if got := contentText(blocks); got != "a\nb" {
		testingHandle.Fatalf("block content: %q", got)
	}
	if got := contentText(json.RawMessage(`42`)); got != "" {
		testingHandle.Fatalf("unsupported content should be empty: %q", got)
	}
}

// printTestApp builds a minimal app for output rendering tests.
func printTestApp(testingHandle *testing.T, opts *options) *app {
	testingHandle.Helper()
	rc := runtime.Build(nil, runtime.Params{WorkingDirectory: testingHandle.TempDir()}, nil)
	return &app{opts: opts, ctx: rc}
}

// TestWritePrintOutputText verifies the plain text rendering.
func TestWritePrintOutputText(testingHandle *testing.T) {
	application := printTestApp(testingHandle, &options{})
	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatText, application.ctx.Model)

	result := &runtime.TurnResult{Text: "Hello there."}
	if err := writePrintOutput(w, application, result, "session-1", 5); err != nil {
		testingHandle.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Hello there.") {
		testingHandle.Fatalf("text output missing response: %q", buf.String())
	}
}

// TestWritePrintOutputTextVerboseTools verifies tool results only appear
// with --verbose.
func TestWritePrintOutputTextVerboseTools(testingHandle *testing.T) {
	outcome := runtime.ToolOutcome{
		ToolUseID: "toolu_01",
		Result:    tools.Success("toolu_01", "mock output"),
	}

	quiet := printTestApp(testingHandle, &options{})
	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatText, quiet.ctx.Model)
	result := &runtime.TurnResult{Text: "Done.", Tools: []runtime.ToolOutcome{outcome}}
	if err := writePrintOutput(w, quiet, result, "session-1", 5); err != nil {
		testingHandle.Fatalf("write failed: %v", err)
	}
	if strings.Contains(buf.String(), "mock output") {
		testingHandle.Fatalf("tool output should be hidden without --verbose: %q", buf.String())
	}

	verbose := printTestApp(testingHandle, &options{Verbose: true})
	buf.Reset()
	w = output.NewWriter(&buf, output.FormatText, verbose.ctx.Model)
	if err := writePrintOutput(w, verbose, result, "session-1", 5); err != nil {
		testingHandle.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "mock output") {
		testingHandle.Fatalf("tool output missing with --verbose: %q", buf.String())
	}
}

// TestWriteStreamSequence verifies the stream-json event order and the
// tool_use id linkage between the assistant event and the results.
func TestWriteStreamSequence(testingHandle *testing.T) {
	application := printTestApp(testingHandle, &options{Verbose: true})
	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatStreamJson, application.ctx.Model)

	outcome := runtime.ToolOutcome{
		Call:      runtimeToolCall("Bash", map[string]any{"command": "ls"}),
		ToolUseID: "toolu_fixed",
		Result:    tools.Success("toolu_fixed", "file.txt"),
	}
	result := &runtime.TurnResult{Text: "Listing files.", Tools: []runtime.ToolOutcome{outcome}}

	if err := writePrintOutput(w, application, result, "session-1", 12); err != nil {
		testingHandle.Fatalf("write failed: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 4 {
		testingHandle.Fatalf("expected 4 events, got %d: %v", len(lines), lines)
	}

	var types []string
	for _, line := range lines {
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			testingHandle.Fatalf("invalid event json: %v", err)
		}
		types = append(types, event["type"].(string))
	}
	want := []string{"system", "assistant", "tool_result", "result"}
	for i := range want {
		if types[i] != want[i] {
			testingHandle.Fatalf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}

	if !strings.Contains(lines[1], `"toolu_fixed"`) {
		testingHandle.Fatalf("assistant event missing tool_use id: %q", lines[1])
	}
	if !strings.Contains(lines[2], `"toolu_fixed"`) {
		testingHandle.Fatalf("tool result missing matching id: %q", lines[2])
	}
	if !strings.Contains(lines[3], `"is_error":false`) {
		testingHandle.Fatalf("result event should succeed: %q", lines[3])
	}
}

// TestMcpServerInfos verifies configured servers are reported as connected.
func TestMcpServerInfos(testingHandle *testing.T) {
	application := printTestApp(testingHandle, &options{})
	if infos := mcpServerInfos(application); len(infos) != 0 {
		testingHandle.Fatalf("no config should mean no servers: %v", infos)
	}

	application.mcp = &config.McpConfig{McpServers: map[string]config.McpServerConfig{
		"filesystem": {Command: "mcp-fs"},
	}}
	infos := mcpServerInfos(application)
	if len(infos) != 1 || infos[0].Name != "filesystem" || infos[0].Status != output.McpConnected {
		testingHandle.Fatalf("unexpected server infos: %v", infos)
	}
}

// runtimeToolCall builds a tool call for output tests.
func runtimeToolCall(tool string, input map[string]any) scenario.ToolCallSpec {
	return scenario.ToolCallSpec{Tool: tool, Input: input}
}

// nonEmptyLines splits output into trimmed non-empty lines.
func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
