package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/tools"
)

// Format selects the print-mode output format.
type Format string

const (
	// FormatText prints plain response text.
	FormatText Format = "text"
	// FormatJson prints the result wrapper envelope.
	FormatJson Format = "json"
	// FormatStreamJson prints the three-event JSON Lines sequence.
	FormatStreamJson Format = "stream-json"
)

// ParseFormat validates an --output-format value.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatJson):
		return FormatJson, nil
	case string(FormatStreamJson):
		return FormatStreamJson, nil
	default:
		return "", fmt.Errorf("invalid output format %q (expected text, json, or stream-json)", s)
	}
}

// Writer renders responses in one of the print-mode formats.
type Writer struct {
	w      io.Writer
	format Format
	model  string
}

// NewWriter constructs a writer for the given format and model name.
func NewWriter(w io.Writer, format Format, model string) *Writer {
	return &Writer{w: w, format: format, model: model}
}

// Format returns the configured output format.
func (w *Writer) Format() Format { return w.format }

// Raw exposes the underlying writer for output that must bypass formatting,
// such as truncated or deliberately malformed payloads.
func (w *Writer) Raw() io.Writer { return w.w }

// WriteResponse renders a complete turn response. For stream-json the full
// sequence is system init, one condensed assistant event, then the result.
func (w *Writer) WriteResponse(response *scenario.ResponseSpec, sessionID string, durationMS int64, toolNames []string, mcpServers []McpServerInfo) error {
	switch w.format {
	case FormatJson:
		return w.writeJSON(response, sessionID, durationMS)
	case FormatStreamJson:
		return w.writeStreamJSON(response, sessionID, durationMS, toolNames, mcpServers)
	default:
		_, err := fmt.Fprintln(w.w, response.Text)
		return err
	}
}

func (w *Writer) responseUsage(response *scenario.ResponseSpec) (int64, int64) {
	if response.Usage != nil {
		return response.Usage.InputTokens, response.Usage.OutputTokens
	}
	return 100, EstimateTokens(response.Text)
}

func (w *Writer) writeJSON(response *scenario.ResponseSpec, sessionID string, durationMS int64) error {
	inputTokens, outputTokens := w.responseUsage(response)
	result := SuccessResult(response.Text, sessionID, durationMS, inputTokens, outputTokens, w.model)
	return w.WriteJSONLine(result)
}

func (w *Writer) writeStreamJSON(response *scenario.ResponseSpec, sessionID string, durationMS int64, toolNames []string, mcpServers []McpServerInfo) error {
	if err := w.WriteJSONLine(NewSystemInit(sessionID, toolNames, mcpServers)); err != nil {
		return err
	}

	inputTokens, outputTokens := w.responseUsage(response)
	content := []ContentBlock{{Type: "text", Text: response.Text}}
	for _, call := range response.ToolCalls {
		content = append(content, ContentBlock{
			Type:  "tool_use",
			ID:    tools.NewToolUseID(),
			Name:  call.Tool,
			Input: call.Input,
		})
	}
	message := AssistantMessage{
		ID:      "msg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Model:   w.model,
		Role:    "assistant",
		Type:    "message",
		Content: content,
		Usage: map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}
	if err := w.WriteJSONLine(NewAssistantEvent(message, sessionID)); err != nil {
		return err
	}

	result := SuccessResult(response.Text, sessionID, durationMS, inputTokens, outputTokens, w.model)
	return w.WriteJSONLine(result)
}

// WriteToolResult renders a tool result: plain text (or an Error: line) in
// text mode, a tool_result block in the JSON modes.
func (w *Writer) WriteToolResult(result tools.Result) error {
	if w.format == FormatText {
		text := result.Text()
		if text == "" {
			return nil
		}
		if result.IsError {
			_, err := fmt.Fprintf(w.w, "Error: %s\n", text)
			return err
		}
		_, err := fmt.Fprintln(w.w, text)
		return err
	}

	block := ToolResultBlock{
		Type:      "tool_result",
		ToolUseID: result.ToolUseID,
		IsError:   result.IsError,
	}
	for _, content := range result.Content {
		block.Content = append(block.Content, ContentBlock{Type: content.Type, Text: content.Text})
	}
	return w.WriteJSONLine(block)
}

// WriteResult renders a result envelope directly.
func (w *Writer) WriteResult(result ResultOutput) error {
	if w.format == FormatText {
		if result.IsError {
			_, err := fmt.Fprintf(w.w, "Error: %s\n", result.Error)
			return err
		}
		_, err := fmt.Fprintln(w.w, result.Result)
		return err
	}
	return w.WriteJSONLine(result)
}

// WriteJSONLine marshals a value onto one JSON line.
func (w *Writer) WriteJSONLine(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal output event: %w", err)
	}
	if _, err := w.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write output event: %w", err)
	}
	return nil
}
