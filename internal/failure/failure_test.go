package failure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudeless/claudeless/internal/output"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/state"
)

const testSession = "11111111-2222-3333-4444-555555555555"

func TestFromFlag(t *testing.T) {
	spec, err := FromFlag("rate-limit")
	require.NoError(t, err)
	assert.Equal(t, scenario.FailureRateLimit, spec.Type)
	assert.Equal(t, int64(60), spec.RetryAfter)

	alias, err := FromFlag("rate_limit")
	require.NoError(t, err)
	assert.Equal(t, spec.Type, alias.Type)

	spec, err = FromFlag("timeout")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), spec.AfterMS)

	_, err = FromFlag("explode")
	require.Error(t, err)
}

func executeText(t *testing.T, spec *scenario.FailureSpec) (string, int) {
	t.Helper()
	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatText, "claude-opus-4-5-20251101")
	code, err := Execute(context.Background(), spec, w, testSession, nil)
	require.NoError(t, err)
	return buf.String(), code
}

func TestNetworkUnreachable(t *testing.T) {
	out, code := executeText(t, &scenario.FailureSpec{Type: scenario.FailureNetworkUnreachable})
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out, "Network error: Connection refused")
}

func TestAuthErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatJson, "claude-opus-4-5-20251101")
	code, err := Execute(context.Background(),
		&scenario.FailureSpec{Type: scenario.FailureAuthError, Message: "Invalid API key"},
		w, testSession, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitError, code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "result", result["type"])
	assert.Equal(t, "error", result["subtype"])
	assert.Equal(t, true, result["is_error"])
	assert.Equal(t, "Invalid API key", result["error"])
}

func TestRateLimitCarriesRetryAfter(t *testing.T) {
	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatJson, "m")
	code, err := Execute(context.Background(),
		&scenario.FailureSpec{Type: scenario.FailureRateLimit, RetryAfter: 30}, w, testSession, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitError, code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, float64(30), result["retry_after"])
}

func TestPartialResponse(t *testing.T) {
	out, code := executeText(t, &scenario.FailureSpec{
		Type:        scenario.FailurePartialResponse,
		PartialText: "I was going to say...",
	})
	assert.Equal(t, ExitPartial, code)
	// Truncated output: no trailing newline.
	assert.Equal(t, "I was going to say...", out)
}

func TestMalformedJSON(t *testing.T) {
	raw := `{"type":"message","content":[{`
	out, code := executeText(t, &scenario.FailureSpec{Type: scenario.FailureMalformedJSON, Raw: raw})
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, raw+"\n", out)
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestConnectionTimeoutWaits(t *testing.T) {
	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatText, "m")
	start := time.Now()
	code, err := Execute(context.Background(),
		&scenario.FailureSpec{Type: scenario.FailureConnectionTimeout, AfterMS: 50}, w, testSession, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitError, code)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Contains(t, buf.String(), "timed out after 50ms")
}

func TestFailureRecordsToSession(t *testing.T) {
	t.Setenv(state.EnvStateDir, t.TempDir())
	writer, err := state.NewWriter(testSession, "/work/project", time.Now(),
		"claude-opus-4-5-20251101", "2.1.12", "/work/project")
	require.NoError(t, err)

	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatText, "m")
	_, err = Execute(context.Background(),
		&scenario.FailureSpec{Type: scenario.FailureOutOfCredits}, w, testSession, writer)
	require.NoError(t, err)

	raw, err := os.ReadFile(writer.SessionPath())
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line))
	assert.Equal(t, "error", line["subtype"])
	assert.Equal(t, "Billing error: No credits remaining", line["error"])
	assert.Equal(t, "billing_error", line["errorType"])
}

func TestMalformedJSONLeavesNoRecord(t *testing.T) {
	t.Setenv(state.EnvStateDir, t.TempDir())
	writer, err := state.NewWriter(testSession, "/work/project", time.Now(),
		"claude-opus-4-5-20251101", "2.1.12", "/work/project")
	require.NoError(t, err)

	var buf bytes.Buffer
	w := output.NewWriter(&buf, output.FormatText, "m")
	_, err = Execute(context.Background(),
		&scenario.FailureSpec{Type: scenario.FailureMalformedJSON, Raw: "{"}, w, testSession, writer)
	require.NoError(t, err)

	_, err = os.Stat(writer.SessionPath())
	assert.True(t, os.IsNotExist(err))
}
