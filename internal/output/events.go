package output

import "github.com/google/uuid"

// MCP server statuses reported in the init event.
const (
	McpConnected    = "connected"
	McpFailed       = "failed"
	McpDisconnected = "disconnected"
)

// McpServerInfo names a configured MCP server in the init event. Servers
// are reported but never launched.
type McpServerInfo struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// SystemInitEvent is the first stream-json event of a session.
type SystemInitEvent struct {
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype"`
	SessionID  string          `json:"session_id"`
	Tools      []string        `json:"tools"`
	McpServers []McpServerInfo `json:"mcp_servers"`
}

// NewSystemInit builds the init event.
func NewSystemInit(sessionID string, tools []string, mcpServers []McpServerInfo) SystemInitEvent {
	if tools == nil {
		tools = []string{}
	}
	if mcpServers == nil {
		mcpServers = []McpServerInfo{}
	}
	return SystemInitEvent{
		Type:       "system",
		Subtype:    "init",
		SessionID:  sessionID,
		Tools:      tools,
		McpServers: mcpServers,
	}
}

// ContentBlock is a content element inside stream-json messages.
type ContentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// AssistantMessage is the message body of a stream-json assistant event.
type AssistantMessage struct {
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	Role         string         `json:"role"`
	Type         string         `json:"type"`
	Content      []ContentBlock `json:"content"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        map[string]any `json:"usage"`
}

// AssistantEvent is the condensed assistant event real Claude CLI emits:
// one event carrying the complete message, no delta stream.
type AssistantEvent struct {
	Type      string           `json:"type"`
	Message   AssistantMessage `json:"message"`
	SessionID string           `json:"session_id"`
	UUID      string           `json:"uuid"`
}

// NewAssistantEvent wraps a message in the assistant event envelope.
func NewAssistantEvent(message AssistantMessage, sessionID string) AssistantEvent {
	return AssistantEvent{
		Type:      "assistant",
		Message:   message,
		SessionID: sessionID,
		UUID:      uuid.NewString(),
	}
}

// ToolResultBlock is a standalone tool result event for stream-json output.
type ToolResultBlock struct {
	Type      string         `json:"type"`
	ToolUseID string         `json:"tool_use_id"`
	IsError   bool           `json:"is_error"`
	Content   []ContentBlock `json:"content"`
}
