// Package hooks implements the subprocess hook protocol: JSON payload on
// stdin, optional JSON response on stdout, bounded timeout, exit code 2 as
// a block signal.
package hooks

import (
	"encoding/json"
)

// Event names a hook event. The values are the wire names real Claude Code
// uses in settings and in the hook_event_name payload field.
type Event string

const (
	// EventPreToolUse fires before each tool call.
	EventPreToolUse Event = "PreToolUse"
	// EventPostToolUse fires after each tool call completes.
	EventPostToolUse Event = "PostToolUse"
	// EventNotification fires on user-facing notifications.
	EventNotification Event = "Notification"
	// EventPermissionRequest fires when a permission prompt is needed.
	EventPermissionRequest Event = "PermissionRequest"
	// EventSessionStart fires once when the session begins.
	EventSessionStart Event = "SessionStart"
	// EventSessionEnd fires once when the session ends.
	EventSessionEnd Event = "SessionEnd"
	// EventUserPromptSubmit fires when the user submits a prompt.
	EventUserPromptSubmit Event = "UserPromptSubmit"
	// EventPreCompact fires before context compaction.
	EventPreCompact Event = "PreCompact"
	// EventStop fires after the assistant finishes responding.
	EventStop Event = "Stop"
)

// Notification types used with EventNotification.
const (
	NotificationPermissionPrompt  = "permission_prompt"
	NotificationIdlePrompt        = "idle_prompt"
	NotificationElicitationDialog = "elicitation_dialog"
	NotificationAuthSuccess       = "auth_success"
)

// Message is one hook invocation payload. Fields holds the event-specific
// entries; the executor flattens everything plus the common context fields
// into a single JSON object on the subprocess's stdin.
type Message struct {
	// Event selects which registered hooks fire.
	Event Event
	// SessionID is included in every payload.
	SessionID string
	// Fields are the event-specific payload entries.
	Fields map[string]any
}

// ToolMessage builds a PreToolUse or PostToolUse payload. output is included
// as tool_response only for post hooks.
func ToolMessage(event Event, sessionID, toolName string, toolInput map[string]any, output string) Message {
	fields := map[string]any{
		"tool_name":  toolName,
		"tool_input": toolInput,
	}
	if event == EventPostToolUse {
		fields["tool_response"] = output
	}
	return Message{Event: event, SessionID: sessionID, Fields: fields}
}

// NotificationMessage builds a Notification payload.
func NotificationMessage(sessionID, notificationType, title, message string) Message {
	return Message{
		Event:     EventNotification,
		SessionID: sessionID,
		Fields: map[string]any{
			"notification_type": notificationType,
			"title":             title,
			"message":           message,
		},
	}
}

// PermissionMessage builds a PermissionRequest payload.
func PermissionMessage(sessionID, toolName, action string, context map[string]any) Message {
	return Message{
		Event:     EventPermissionRequest,
		SessionID: sessionID,
		Fields: map[string]any{
			"tool_name": toolName,
			"action":    action,
			"context":   context,
		},
	}
}

// SessionMessage builds a SessionStart or SessionEnd payload.
func SessionMessage(event Event, sessionID, projectPath string) Message {
	fields := map[string]any{}
	if projectPath != "" {
		fields["project_path"] = projectPath
	}
	return Message{Event: event, SessionID: sessionID, Fields: fields}
}

// PromptMessage builds a UserPromptSubmit payload.
func PromptMessage(sessionID, prompt string) Message {
	return Message{
		Event:     EventUserPromptSubmit,
		SessionID: sessionID,
		Fields:    map[string]any{"prompt": prompt},
	}
}

// CompactionMessage builds a PreCompact payload. trigger is "manual" or
// "auto".
func CompactionMessage(sessionID, trigger, customInstructions string) Message {
	fields := map[string]any{"trigger": trigger}
	if customInstructions != "" {
		fields["custom_instructions"] = customInstructions
	}
	return Message{Event: EventPreCompact, SessionID: sessionID, Fields: fields}
}

// StopMessage builds a Stop payload. stopHookActive is true when the turn
// being finished was itself a stop-hook continuation, letting hook scripts
// avoid infinite loops.
func StopMessage(sessionID string, stopHookActive bool) Message {
	return Message{
		Event:     EventStop,
		SessionID: sessionID,
		Fields:    map[string]any{"stop_hook_active": stopHookActive},
	}
}

// Response is the normalized hook reply. Empty stdout means proceed.
type Response struct {
	// Proceed defaults to true; false aborts the guarded operation.
	Proceed bool `json:"proceed"`
	// ModifiedPayload optionally replaces the event payload.
	ModifiedPayload json.RawMessage `json:"modified_payload,omitempty"`
	// Error carries the hook's failure message.
	Error string `json:"error,omitempty"`
	// Data carries arbitrary extra data (e.g. stop-hook block info).
	Data map[string]any `json:"data,omitempty"`
}

// UnmarshalJSON keeps the proceed-defaults-true semantics and accepts the
// real CLI's stop-hook shape {"decision": "block", "reason": ...}.
func (r *Response) UnmarshalJSON(data []byte) error {
	type raw struct {
		Proceed         *bool           `json:"proceed"`
		ModifiedPayload json.RawMessage `json:"modified_payload"`
		Error           string          `json:"error"`
		Data            map[string]any  `json:"data"`
		Decision        string          `json:"decision"`
		Reason          string          `json:"reason"`
	}
	var parsed raw
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	r.Proceed = parsed.Proceed == nil || *parsed.Proceed
	r.ModifiedPayload = parsed.ModifiedPayload
	r.Error = parsed.Error
	r.Data = parsed.Data
	if parsed.Decision == "block" {
		r.Proceed = false
		if r.Data == nil {
			r.Data = map[string]any{}
		}
		r.Data["blocked"] = true
		if parsed.Reason != "" {
			r.Data["reason"] = parsed.Reason
		}
	}
	return nil
}

// Proceeded returns the canonical proceed response.
func Proceeded() Response { return Response{Proceed: true} }

// Blocked returns a blocking response with a reason.
func Blocked(reason string) Response {
	return Response{Proceed: false, Error: reason}
}

// BlockInfo extracts the stop-hook continuation signal from a response:
// blocked reports whether the conversation should continue, reason is the
// synthesized next prompt.
func (r Response) BlockInfo() (blocked bool, reason string) {
	if r.Proceed || r.Data == nil {
		return false, ""
	}
	if b, ok := r.Data["blocked"].(bool); !ok || !b {
		return false, ""
	}
	reason, _ = r.Data["reason"].(string)
	return true, reason
}
