package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// appendLine marshals a record and appends it as one JSONL line.
func appendLine(path string, record any) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	// Encode without HTML escaping so strings like "<synthetic>" appear
	// literally, matching the real CLI's transcript bytes.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

// EnvelopeParams are the context fields shared by every message line.
type EnvelopeParams struct {
	SessionID string
	CWD       string
	Version   string
	GitBranch string
	Timestamp time.Time
}

func (p *EnvelopeParams) envelope(lineType string, uuid string, parentUUID *string) Envelope {
	return Envelope{
		Type:        lineType,
		UUID:        uuid,
		Timestamp:   FormatTimestamp(p.Timestamp),
		SessionID:   p.SessionID,
		CWD:         p.CWD,
		Version:     p.Version,
		GitBranch:   p.GitBranch,
		ParentUUID:  parentUUID,
		IsSidechain: false,
		UserType:    userTypeExternal,
	}
}

// WriteQueueOperation appends the queue-operation line that opens a
// print-mode session.
func WriteQueueOperation(path string, sessionID string, operation string, ts time.Time) error {
	return appendLine(path, QueueOperationLine{
		Type:      LineTypeQueueOperation,
		Operation: operation,
		Timestamp: FormatTimestamp(ts),
		SessionID: sessionID,
	})
}

// AppendUserMessage appends a plain user prompt line.
func AppendUserMessage(path string, env EnvelopeParams, uuid string, parentUUID *string, prompt string) error {
	return appendLine(path, UserLine{
		Envelope: env.envelope(LineTypeUser, uuid, parentUUID),
		Message:  UserMessage{Role: "user", Content: prompt},
	})
}

// AppendToolResult appends the user line carrying a tool result, parented to
// the assistant line whose tool_use produced it.
func AppendToolResult(path string, env EnvelopeParams, uuid string, assistantUUID string, toolUseID string, content string, toolUseResult any) error {
	parent := assistantUUID
	return appendLine(path, ToolResultLine{
		Envelope: env.envelope(LineTypeUser, uuid, &parent),
		Message: ToolResultMessage{
			Role: "user",
			Content: []ToolResultContent{{
				ToolUseID: toolUseID,
				Type:      BlockTypeToolResult,
				Content:   content,
			}},
		},
		ToolUseResult:           toolUseResult,
		SourceToolAssistantUUID: assistantUUID,
	})
}

// AssistantParams describes an assistant line to append.
type AssistantParams struct {
	UUID       string
	ParentUUID string
	RequestID  string
	MessageID  string
	Model      string
	Content    []ContentBlock
	StopReason *string
}

// AppendAssistantMessage appends an assistant response line.
func AppendAssistantMessage(path string, env EnvelopeParams, params AssistantParams) error {
	parent := params.ParentUUID
	return appendLine(path, AssistantLine{
		Envelope: env.envelope(LineTypeAssistant, params.UUID, &parent),
		Message: AssistantMessage{
			Model:      params.Model,
			ID:         params.MessageID,
			Type:       "message",
			Role:       "assistant",
			Content:    params.Content,
			StopReason: params.StopReason,
			Usage:      NewUsage(2, 1),
		},
		RequestID: params.RequestID,
	})
}

// AppendResult appends the standalone result record for a tool invocation.
func AppendResult(path string, toolUseID string, content string, ts time.Time) error {
	return appendLine(path, ResultLine{
		Type:      LineTypeResult,
		ToolUseID: toolUseID,
		Content:   content,
		Timestamp: FormatTimestamp(ts),
	})
}

// AppendError appends an error record for a failed turn.
func AppendError(path string, sessionID string, errText string, errType string, retryAfter int, durationMS int64, ts time.Time) error {
	return appendLine(path, ErrorLine{
		Type:       LineTypeResult,
		Subtype:    "error",
		IsError:    true,
		SessionID:  sessionID,
		Error:      errText,
		ErrorType:  errType,
		RetryAfter: retryAfter,
		DurationMS: durationMS,
		Timestamp:  FormatTimestamp(ts),
	})
}

// AppendAPIError appends the synthetic assistant line the real CLI writes
// when an API call fails mid-conversation.
func AppendAPIError(path string, env EnvelopeParams, uuid string, parentUUID *string, messageID string, errText string, errClass string) error {
	return appendLine(path, APIErrorLine{
		Envelope: env.envelope(LineTypeAssistant, uuid, parentUUID),
		Message: APIErrorMessage{
			ID:           messageID,
			Model:        "<synthetic>",
			Role:         "assistant",
			StopReason:   "stop_sequence",
			StopSequence: "",
			Type:         "message",
			Content:      []ContentBlock{TextBlock(errText)},
		},
		Error:             errClass,
		IsAPIErrorMessage: true,
	})
}
