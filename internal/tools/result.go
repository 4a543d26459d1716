package tools

import "fmt"

// ResultContent is one content block inside a tool result.
type ResultContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of a simulated tool invocation.
type Result struct {
	// ToolUseID ties the result to its tool_use block.
	ToolUseID string `json:"tool_use_id"`
	// IsError marks failed invocations.
	IsError bool `json:"is_error"`
	// Content holds the result blocks.
	Content []ResultContent `json:"content"`
	// ToolUseResult carries structured data for the session log, such as
	// the oldTodos/newTodos pair TodoWrite records.
	ToolUseResult any `json:"tool_use_result,omitempty"`
	// NeedsPrompt marks invocations that require an interactive
	// permission decision before they can run.
	NeedsPrompt bool `json:"-"`
}

// Success builds a successful text result.
func Success(toolUseID string, text string) Result {
	return Result{
		ToolUseID: toolUseID,
		Content:   []ResultContent{{Type: "text", Text: text}},
	}
}

// SuccessWithData builds a successful result carrying structured data for
// the session log.
func SuccessWithData(toolUseID string, text string, data any) Result {
	result := Success(toolUseID, text)
	result.ToolUseResult = data
	return result
}

// Failure builds an error result.
func Failure(toolUseID string, message string) Result {
	return Result{
		ToolUseID: toolUseID,
		IsError:   true,
		Content:   []ResultContent{{Type: "text", Text: message}},
	}
}

// NoMockResult reports a tool call with no configured result.
func NoMockResult(toolUseID string, tool string) Result {
	return Failure(toolUseID, fmt.Sprintf("No mock result configured for tool '%s'", tool))
}

// Disabled reports that tool execution is switched off.
func Disabled(toolUseID string) Result {
	return Failure(toolUseID, "Tool execution is disabled")
}

// PermissionDenied reports a denied invocation.
func PermissionDenied(toolUseID string, reason string) Result {
	return Failure(toolUseID, fmt.Sprintf("Permission denied: %s", reason))
}

// PromptRequired marks an invocation awaiting an interactive decision.
func PromptRequired(toolUseID string) Result {
	return Result{ToolUseID: toolUseID, NeedsPrompt: true}
}

// Text returns the text of a single-block result, or empty.
func (r Result) Text() string {
	if len(r.Content) == 1 && r.Content[0].Type == "text" {
		return r.Content[0].Text
	}
	return ""
}
