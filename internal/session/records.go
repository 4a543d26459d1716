package session

import "time"

// Line type discriminators used in session JSONL files.
const (
	LineTypeUser           = "user"
	LineTypeAssistant      = "assistant"
	LineTypeQueueOperation = "queue-operation"
	LineTypeResult         = "result"
)

// Content block type discriminators.
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// userTypeExternal marks messages that originate outside the model.
const userTypeExternal = "external"

// Envelope holds the common fields shared by user and assistant lines.
// Field naming matches the Claude CLI v2.1.12 session log format.
type Envelope struct {
	// Type is the line discriminator: "user" or "assistant".
	Type string `json:"type"`
	// UUID uniquely identifies this line.
	UUID string `json:"uuid"`
	// Timestamp is the RFC 3339 write time.
	Timestamp string `json:"timestamp"`
	// SessionID ties the line to its session.
	SessionID string `json:"sessionId"`
	// CWD is the working directory of the conversation.
	CWD string `json:"cwd"`
	// Version is the emulated CLI version string.
	Version string `json:"version"`
	// GitBranch is the current branch, empty outside a repository.
	GitBranch string `json:"gitBranch"`
	// ParentUUID links to the preceding line; null for roots.
	ParentUUID *string `json:"parentUuid"`
	// IsSidechain marks subagent transcripts.
	IsSidechain bool `json:"isSidechain"`
	// UserType is always "external" for simulated sessions.
	UserType string `json:"userType"`
}

// UserMessage is the message body of a plain user line.
type UserMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserLine is a user prompt line.
type UserLine struct {
	Envelope
	Message UserMessage `json:"message"`
}

// ToolResultContent is a single tool_result block inside a tool result line.
type ToolResultContent struct {
	ToolUseID string `json:"tool_use_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

// ToolResultMessage is the message body of a tool result line.
type ToolResultMessage struct {
	Role    string              `json:"role"`
	Content []ToolResultContent `json:"content"`
}

// ToolResultLine is a user line carrying a tool result back to the assistant.
type ToolResultLine struct {
	Envelope
	Message ToolResultMessage `json:"message"`
	// ToolUseResult carries the tool's structured output verbatim.
	ToolUseResult any `json:"toolUseResult"`
	// SourceToolAssistantUUID names the assistant line whose tool_use
	// produced this result. The unusual capitalization is intentional.
	SourceToolAssistantUUID string `json:"sourceToolAssistantUUID"`
}

// ContentBlock is one element of an assistant message's content array,
// either a text block or a tool_use block.
type ContentBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id string, name string, input any) ContentBlock {
	return ContentBlock{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// CacheCreation is the cache token breakdown inside Usage.
type CacheCreation struct {
	Ephemeral5mInputTokens int `json:"ephemeral_5m_input_tokens"`
	Ephemeral1hInputTokens int `json:"ephemeral_1h_input_tokens"`
}

// Usage mirrors the Anthropic API usage object on assistant messages.
type Usage struct {
	InputTokens              int           `json:"input_tokens"`
	CacheCreationInputTokens int           `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int           `json:"cache_read_input_tokens"`
	CacheCreation            CacheCreation `json:"cache_creation"`
	OutputTokens             int           `json:"output_tokens"`
	ServiceTier              string        `json:"service_tier"`
}

// NewUsage builds a usage object with the standard service tier.
func NewUsage(inputTokens int, outputTokens int) Usage {
	return Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		ServiceTier:  "standard",
	}
}

// AssistantMessage is the message body of an assistant line, carrying the
// API-style envelope fields alongside the content blocks.
type AssistantMessage struct {
	Model        string         `json:"model"`
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// AssistantLine is an assistant response line.
type AssistantLine struct {
	Envelope
	Message   AssistantMessage `json:"message"`
	RequestID string           `json:"requestId"`
}

// QueueOperationLine is the first line of a print-mode session.
type QueueOperationLine struct {
	Type      string `json:"type"`
	Operation string `json:"operation"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"sessionId"`
}

// ResultLine is a standalone tool result record written alongside the tool
// result user line so log readers can find results without walking messages.
type ResultLine struct {
	Type      string `json:"type"`
	ToolUseID string `json:"toolUseId"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ErrorLine records a failed turn, such as a simulated API failure.
type ErrorLine struct {
	Type       string `json:"type"`
	Subtype    string `json:"subtype"`
	IsError    bool   `json:"isError"`
	SessionID  string `json:"sessionId"`
	Error      string `json:"error"`
	ErrorType  string `json:"errorType,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	DurationMS int64  `json:"durationMs"`
	Timestamp  string `json:"timestamp"`
}

// ServerToolUse is the zero-valued server tool counter block on synthetic usage.
type ServerToolUse struct {
	WebSearchRequests int `json:"web_search_requests"`
	WebFetchRequests  int `json:"web_fetch_requests"`
}

// SyntheticUsage is the all-zero usage object Claude writes on API error
// messages. It differs from Usage by carrying server_tool_use and a
// nullable service tier.
type SyntheticUsage struct {
	InputTokens              int           `json:"input_tokens"`
	OutputTokens             int           `json:"output_tokens"`
	CacheCreationInputTokens int           `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int           `json:"cache_read_input_tokens"`
	ServerToolUse            ServerToolUse `json:"server_tool_use"`
	ServiceTier              *string       `json:"service_tier"`
	CacheCreation            CacheCreation `json:"cache_creation"`
}

// APIErrorMessage is the synthetic assistant body written for API errors.
// The model is literally "<synthetic>" and stop_reason is "stop_sequence",
// matching what the real CLI records.
type APIErrorMessage struct {
	ID                string         `json:"id"`
	Container         *string        `json:"container"`
	Model             string         `json:"model"`
	Role              string         `json:"role"`
	StopReason        string         `json:"stop_reason"`
	StopSequence      string         `json:"stop_sequence"`
	Type              string         `json:"type"`
	Usage             SyntheticUsage `json:"usage"`
	Content           []ContentBlock `json:"content"`
	ContextManagement *string        `json:"context_management"`
}

// APIErrorLine is an assistant line flagged as an API error message.
type APIErrorLine struct {
	Envelope
	Message           APIErrorMessage `json:"message"`
	Error             string          `json:"error"`
	IsAPIErrorMessage bool            `json:"isApiErrorMessage"`
}

// FormatTimestamp renders a timestamp the way session logs expect:
// UTC, RFC 3339 with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
