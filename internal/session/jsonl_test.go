package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(ts time.Time) EnvelopeParams {
	return EnvelopeParams{
		SessionID: "11111111-2222-3333-4444-555555555555",
		CWD:       "/work/project",
		Version:   "2.1.12",
		GitBranch: "main",
		Timestamp: ts,
	}
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &obj))
		lines = append(lines, obj)
	}
	return lines
}

func TestAppendTurnLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	env := testEnv(ts)

	require.NoError(t, WriteQueueOperation(path, env.SessionID, "dequeue", ts))
	require.NoError(t, AppendUserMessage(path, env, "user-uuid", nil, "hello there"))
	stop := "end_turn"
	require.NoError(t, AppendAssistantMessage(path, env, AssistantParams{
		UUID:       "assistant-uuid",
		ParentUUID: "user-uuid",
		RequestID:  "req_abc",
		MessageID:  "msg_abc",
		Model:      "claude-opus-4-5-20251101",
		Content:    []ContentBlock{TextBlock("hi")},
		StopReason: &stop,
	}))

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	queue := lines[0]
	assert.Equal(t, "queue-operation", queue["type"])
	assert.Equal(t, "dequeue", queue["operation"])
	assert.Equal(t, env.SessionID, queue["sessionId"])

	user := lines[1]
	assert.Equal(t, "user", user["type"])
	assert.Equal(t, "2026-03-14T09:26:53.589Z", user["timestamp"])
	assert.Equal(t, "external", user["userType"])
	assert.Equal(t, false, user["isSidechain"])
	require.Contains(t, user, "parentUuid")
	assert.Nil(t, user["parentUuid"])
	msg := user["message"].(map[string]any)
	assert.Equal(t, "hello there", msg["content"])

	assistant := lines[2]
	assert.Equal(t, "assistant", assistant["type"])
	assert.Equal(t, "user-uuid", assistant["parentUuid"])
	assert.Equal(t, "req_abc", assistant["requestId"])
	body := assistant["message"].(map[string]any)
	assert.Equal(t, "claude-opus-4-5-20251101", body["model"])
	assert.Equal(t, "msg_abc", body["id"])
	assert.Equal(t, "end_turn", body["stop_reason"])
	assert.Nil(t, body["stop_sequence"])
	usage := body["usage"].(map[string]any)
	assert.Equal(t, float64(2), usage["input_tokens"])
	assert.Equal(t, float64(1), usage["output_tokens"])
	assert.Equal(t, "standard", usage["service_tier"])
	require.Contains(t, usage, "cache_creation")
}

func TestAppendToolResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	env := testEnv(time.Now())

	require.NoError(t, AppendToolResult(path, env, "result-uuid", "assistant-uuid",
		"toolu_00000001", "file contents", map[string]any{"stdout": "file contents"}))
	require.NoError(t, AppendResult(path, "toolu_00000001", "file contents", env.Timestamp))

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	toolLine := lines[0]
	assert.Equal(t, "user", toolLine["type"])
	assert.Equal(t, "assistant-uuid", toolLine["parentUuid"])
	assert.Equal(t, "assistant-uuid", toolLine["sourceToolAssistantUUID"])
	require.Contains(t, toolLine, "toolUseResult")
	body := toolLine["message"].(map[string]any)
	blocks := body["content"].([]any)
	require.Len(t, blocks, 1)
	block := blocks[0].(map[string]any)
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, "toolu_00000001", block["tool_use_id"])
	assert.Equal(t, "file contents", block["content"])

	result := lines[1]
	assert.Equal(t, "result", result["type"])
	assert.Equal(t, "toolu_00000001", result["toolUseId"])
}

func TestAppendError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	env := testEnv(time.Now())

	require.NoError(t, AppendError(path, env.SessionID, "Rate limit exceeded", "rate_limit", 30, 125, env.Timestamp))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	errLine := lines[0]
	assert.Equal(t, "result", errLine["type"])
	assert.Equal(t, "error", errLine["subtype"])
	assert.Equal(t, true, errLine["isError"])
	assert.Equal(t, "Rate limit exceeded", errLine["error"])
	assert.Equal(t, "rate_limit", errLine["errorType"])
	assert.Equal(t, float64(30), errLine["retryAfter"])
	assert.Equal(t, float64(125), errLine["durationMs"])
}

func TestAppendAPIError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	env := testEnv(time.Now())

	require.NoError(t, AppendAPIError(path, env, "err-uuid", nil, "msg_err",
		"API Error: network unreachable", "NetworkError"))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "assistant", line["type"])
	assert.Equal(t, true, line["isApiErrorMessage"])
	assert.Equal(t, "NetworkError", line["error"])
	body := line["message"].(map[string]any)
	assert.Equal(t, "<synthetic>", body["model"])
	assert.Equal(t, "stop_sequence", body["stop_reason"])
	usage := body["usage"].(map[string]any)
	assert.Equal(t, float64(0), usage["input_tokens"])
	require.Contains(t, usage, "server_tool_use")
	assert.Nil(t, usage["service_tier"])
}

func TestLoadTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	env := testEnv(time.Now())

	require.NoError(t, WriteQueueOperation(path, env.SessionID, "dequeue", env.Timestamp))
	require.NoError(t, AppendUserMessage(path, env, "u1", nil, "first prompt"))
	require.NoError(t, AppendAssistantMessage(path, env, AssistantParams{
		UUID: "a1", ParentUUID: "u1", RequestID: "req_1", MessageID: "msg_1",
		Model: "claude-opus-4-5-20251101",
		Content: []ContentBlock{
			TextBlock("working on it"),
			ToolUseBlock("toolu_00000001", "Bash", map[string]any{"command": "ls"}),
		},
	}))
	require.NoError(t, AppendToolResult(path, env, "u2", "a1", "toolu_00000001", "ok", nil))
	require.NoError(t, AppendResult(path, "toolu_00000001", "ok", env.Timestamp))

	transcript, err := LoadTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, env.SessionID, transcript.SessionID)
	// queue-operation and result lines do not count; tool result does.
	assert.Equal(t, 3, transcript.MessageCount)
	require.Len(t, transcript.Entries, 2)
	assert.Equal(t, "user", transcript.Entries[0].Role)
	assert.Equal(t, "first prompt", transcript.Entries[0].Text)
	assert.Equal(t, "assistant", transcript.Entries[1].Role)
	assert.Equal(t, "working on it", transcript.Entries[1].Text)
}

func TestLoadTranscriptMissingFile(t *testing.T) {
	_, err := LoadTranscript(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
}
