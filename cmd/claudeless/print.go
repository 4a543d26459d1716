package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/claudeless/claudeless/internal/failure"
	"github.com/claudeless/claudeless/internal/output"
	"github.com/claudeless/claudeless/internal/runtime"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/tools"
)

// runPrintMode evaluates one turn and writes the response to stdout in the
// configured format. Returns the process exit code.
func runPrintMode(cmd *cobra.Command, application *app, args []string) (int, error) {
	opts := application.opts

	format, err := output.ParseFormat(opts.OutputFormat)
	if err != nil {
		return failure.ExitError, err
	}
	// Claude requires --verbose when streaming JSON in print mode.
	if format == output.FormatStreamJson && !opts.Verbose {
		return failure.ExitError, fmt.Errorf("when using --print, --output-format=stream-json requires --verbose")
	}

	stdout := io.Writer(os.Stdout)
	if opts.Capture != "" {
		capture, err := os.Create(opts.Capture)
		if err != nil {
			return failure.ExitError, fmt.Errorf("open capture file: %w", err)
		}
		defer capture.Close()
		stdout = io.MultiWriter(stdout, capture)
	}
	w := output.NewWriter(stdout, format, application.ctx.Model)
	sessionID := application.ctx.SessionID.String()

	if application.writer != nil {
		if err := application.writer.WriteQueueOperation(); err != nil {
			return failure.ExitError, err
		}
	}

	// A --failure flag short-circuits before any prompt is read.
	if application.failure != nil {
		return failure.Execute(context.Background(), application.failure, w, sessionID, application.writer)
	}

	prompt, err := readPrompt(cmd, opts, args)
	if err != nil {
		return failure.ExitError, err
	}

	start := time.Now()
	result, err := application.orch.Execute(context.Background(), prompt)
	if err != nil {
		var failErr *runtime.FailureError
		if errors.As(err, &failErr) {
			// Already recorded by the orchestrator; writer nil avoids a
			// duplicate session record.
			return failure.Execute(context.Background(), failErr.Spec, w, sessionID, nil)
		}
		return failure.ExitError, err
	}

	// Print mode has no permission dialog: a pending call is denied.
	if result.Pending != nil {
		denied, err := application.orch.ResolvePending(context.Background(), result.Pending, false)
		if err != nil {
			return failure.ExitError, err
		}
		result.Tools = append(result.Tools, runtime.ToolOutcome{
			Call:      result.Pending.Call,
			ToolUseID: result.Pending.ToolUseID,
			Result:    denied,
		})
		result.Pending = nil
	}

	durationMS := time.Since(start).Milliseconds()
	if err := writePrintOutput(w, application, result, sessionID, durationMS); err != nil {
		return failure.ExitError, err
	}
	return failure.ExitSuccess, nil
}

// writePrintOutput renders a completed turn in the selected format.
func writePrintOutput(w *output.Writer, application *app, result *runtime.TurnResult, sessionID string, durationMS int64) error {
	response := &scenario.ResponseSpec{Text: result.Text, Usage: result.Usage}

	switch w.Format() {
	case output.FormatStreamJson:
		return writeStreamSequence(w, application, result, response, sessionID, durationMS)
	case output.FormatJson:
		return w.WriteResponse(response, sessionID, durationMS, nil, nil)
	default:
		if err := w.WriteResponse(response, sessionID, durationMS, nil, nil); err != nil {
			return err
		}
		if application.opts.Verbose {
			for _, outcome := range result.Tools {
				if err := w.WriteToolResult(outcome.Result); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// writeStreamSequence emits the full stream-json event sequence: system
// init, one assistant message, the tool-result user events, and the
// terminal result.
func writeStreamSequence(w *output.Writer, application *app, result *runtime.TurnResult, response *scenario.ResponseSpec, sessionID string, durationMS int64) error {
	if err := w.WriteJSONLine(output.NewSystemInit(sessionID, tools.KnownNames(), mcpServerInfos(application))); err != nil {
		return err
	}

	content := []output.ContentBlock{{Type: "text", Text: result.Text}}
	for _, outcome := range result.Tools {
		content = append(content, output.ContentBlock{
			Type:  "tool_use",
			ID:    outcome.ToolUseID,
			Name:  outcome.Call.Tool,
			Input: outcome.Call.Input,
		})
	}
	inputTokens, outputTokens := int64(100), output.EstimateTokens(result.Text)
	if result.Usage != nil {
		inputTokens, outputTokens = result.Usage.InputTokens, result.Usage.OutputTokens
	}
	message := output.AssistantMessage{
		ID:      "msg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Model:   application.ctx.Model,
		Role:    "assistant",
		Type:    "message",
		Content: content,
		Usage: map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}
	if err := w.WriteJSONLine(output.NewAssistantEvent(message, sessionID)); err != nil {
		return err
	}

	for _, outcome := range result.Tools {
		if err := w.WriteToolResult(outcome.Result); err != nil {
			return err
		}
	}

	return w.WriteJSONLine(output.SuccessResult(result.Text, sessionID, durationMS, inputTokens, outputTokens, application.ctx.Model))
}

// mcpServerInfos reports the configured server names; nothing is launched,
// so every server is presented as connected.
func mcpServerInfos(application *app) []output.McpServerInfo {
	if application.mcp == nil {
		return nil
	}
	names := application.mcp.ServerNames()
	infos := make([]output.McpServerInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, output.McpServerInfo{Name: name, Status: output.McpConnected})
	}
	return infos
}

// readPrompt resolves the print-mode prompt: argv, --input-file, stream-json
// user messages, or stdin, in that order of precedence.
func readPrompt(cmd *cobra.Command, opts *options, args []string) (string, error) {
	if opts.InputFile != "" {
		data, err := os.ReadFile(opts.InputFile)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if opts.InputFormat == "stream-json" {
		return readStreamJSONPrompt(os.Stdin)
	}

	prompt := strings.TrimSpace(strings.Join(cmd.Flags().Args(), " "))
	if prompt == "" && len(args) > 0 {
		prompt = strings.TrimSpace(strings.Join(args, " "))
	}
	if prompt == "" {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(input))
	}
	if prompt == "" {
		return "", errors.New("prompt is required")
	}
	return prompt, nil
}

// streamJSONLine is one line of --input-format stream-json input.
type streamJSONLine struct {
	Type    string `json:"type"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// readStreamJSONPrompt collects the user messages from JSON-lines input and
// joins their text contents.
func readStreamJSONPrompt(r io.Reader) (string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var parsed streamJSONLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			return "", fmt.Errorf("parse stream-json input: %w", err)
		}
		if parsed.Type != "user" {
			continue
		}
		if text := contentText(parsed.Message.Content); text != "" {
			prompts = append(prompts, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream-json input: %w", err)
	}
	if len(prompts) == 0 {
		return "", errors.New("no user messages in stream-json input")
	}
	return strings.Join(prompts, "\n"), nil
}

// contentText extracts text from a message content field that is either a
// plain string or an array of content blocks.
func contentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var texts []string
	for _, block := range blocks {
		if block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, "\n")
}
