package tools

import (
	"fmt"
	"sync/atomic"

	"github.com/claudeless/claudeless/internal/permission"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/state"
)

var toolUseCounter atomic.Uint64

// NewToolUseID returns the next tool_use id in the toolu_%08x form.
// IDs are sequential so repeated runs of a scenario produce stable logs.
func NewToolUseID() string {
	return fmt.Sprintf("toolu_%08x", toolUseCounter.Add(1))
}

// ResetToolUseIDs restarts the id sequence. Tests use this to pin output.
func ResetToolUseIDs() {
	toolUseCounter.Store(0)
}

// ExecutionContext carries per-session context into executors.
type ExecutionContext struct {
	// CWD is the working directory of the conversation.
	CWD string
	// SessionID identifies the running session.
	SessionID string
	// StateWriter persists todo and plan side effects when present.
	StateWriter *state.Writer
}

// Executor satisfies tool calls from a scenario response.
type Executor interface {
	Execute(call scenario.ToolCallSpec, toolUseID string, ctx *ExecutionContext) Result
	Name() string
}

// MockExecutor returns the pre-configured result from the tool call spec.
type MockExecutor struct{}

// Execute returns the call's canned result, or an error when none is set.
func (MockExecutor) Execute(call scenario.ToolCallSpec, toolUseID string, _ *ExecutionContext) Result {
	if call.Result != "" {
		return Success(toolUseID, call.Result)
	}
	return NoMockResult(toolUseID, call.Tool)
}

// Name identifies the executor.
func (MockExecutor) Name() string { return "mock" }

// DisabledExecutor rejects every tool call.
type DisabledExecutor struct{}

// Execute always reports tool execution as disabled.
func (DisabledExecutor) Execute(_ scenario.ToolCallSpec, toolUseID string, _ *ExecutionContext) Result {
	return Disabled(toolUseID)
}

// Name identifies the executor.
func (DisabledExecutor) Name() string { return "disabled" }

// StatefulExecutor handles the tools with real state-directory side effects,
// TodoWrite and ExitPlanMode, and falls back to mock results for the rest.
// Nothing here touches the filesystem outside the state directory.
type StatefulExecutor struct{}

// Execute dispatches stateful tools and mocks everything else.
func (StatefulExecutor) Execute(call scenario.ToolCallSpec, toolUseID string, ctx *ExecutionContext) Result {
	if ctx != nil && ctx.StateWriter != nil {
		switch call.Tool {
		case NameTodoWrite:
			return executeTodoWrite(call, toolUseID, ctx.StateWriter)
		case NameExitPlanMode:
			return executeExitPlanMode(call, toolUseID, ctx.StateWriter)
		}
	}
	if call.Tool == NameTodoWrite || call.Tool == NameExitPlanMode {
		return Success(toolUseID, fmt.Sprintf("%s executed (no state writer configured)", call.Tool))
	}
	return MockExecutor{}.Execute(call, toolUseID, ctx)
}

// Name identifies the executor.
func (StatefulExecutor) Name() string { return "stateful" }

// todoWriteAck is the confirmation text the real CLI returns from TodoWrite.
const todoWriteAck = "Todos have been modified successfully. Ensure that you continue to use the todo list to track your progress. Please proceed with the current tasks if applicable"

func executeTodoWrite(call scenario.ToolCallSpec, toolUseID string, writer *state.Writer) Result {
	var items []state.TodoItem
	if raw, ok := call.Input["todos"].([]any); ok {
		for _, entry := range raw {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			item := state.TodoItem{
				Content:    stringField(obj, "content"),
				Status:     stringField(obj, "status"),
				ActiveForm: stringField(obj, "activeForm"),
			}
			if item.Content == "" {
				continue
			}
			if item.Status == "" {
				item.Status = state.TodoPending
			}
			if item.ActiveForm == "" {
				item.ActiveForm = item.Content
			}
			items = append(items, item)
		}
	}

	if err := writer.WriteTodos(items); err != nil {
		return Failure(toolUseID, fmt.Sprintf("Failed to write todos: %v", err))
	}
	newTodos := make([]map[string]any, 0, len(items))
	for _, item := range items {
		newTodos = append(newTodos, map[string]any{
			"content":    item.Content,
			"status":     item.Status,
			"activeForm": item.ActiveForm,
		})
	}
	return SuccessWithData(toolUseID, todoWriteAck, map[string]any{
		"oldTodos": []any{},
		"newTodos": newTodos,
	})
}

func executeExitPlanMode(call scenario.ToolCallSpec, toolUseID string, writer *state.Writer) Result {
	content := stringField(call.Input, "plan_content")
	if content == "" {
		content = stringField(call.Input, "planContent")
	}
	if content == "" {
		content = stringField(call.Input, "plan")
	}
	if content == "" {
		content = stringField(call.Input, "content")
	}
	if content == "" {
		content = "# Plan\n\nNo content provided."
	}

	name, err := writer.CreatePlan(content)
	if err != nil {
		return Failure(toolUseID, fmt.Sprintf("Failed to save plan: %v", err))
	}
	return Success(toolUseID, fmt.Sprintf("Plan saved as %s.md", name))
}

// PermissionCheckingExecutor gates an inner executor behind the permission
// pipeline. Denials become error results; prompts surface as NeedsPrompt so
// the caller can either ask interactively or stop the turn.
type PermissionCheckingExecutor struct {
	inner   Executor
	checker *permission.Checker
}

// NewPermissionCheckingExecutor wraps inner with the given checker.
func NewPermissionCheckingExecutor(inner Executor, checker *permission.Checker) *PermissionCheckingExecutor {
	return &PermissionCheckingExecutor{inner: inner, checker: checker}
}

// Execute checks permission before delegating.
func (e *PermissionCheckingExecutor) Execute(call scenario.ToolCallSpec, toolUseID string, ctx *ExecutionContext) Result {
	decision := e.checker.CheckWithInput(call.Tool, Action(call.Tool), SalientInput(call.Tool, call.Input))
	switch decision.Kind {
	case permission.Allowed:
		return e.inner.Execute(call, toolUseID, ctx)
	case permission.Denied:
		return PermissionDenied(toolUseID, decision.Reason)
	default:
		return PromptRequired(toolUseID)
	}
}

// Name identifies the executor.
func (e *PermissionCheckingExecutor) Name() string { return "permission_checking" }

// Inner exposes the wrapped executor so an interactively approved call can
// bypass the permission check that already stopped it.
func (e *PermissionCheckingExecutor) Inner() Executor { return e.inner }

// NewExecutor picks the executor for a scenario's tool execution mode.
// Both modes route through the stateful executor; live mode differs only in
// that missing mock results are reported per call rather than treated as
// configuration errors up front.
func NewExecutor(_ scenario.ToolExecutionMode) Executor {
	return StatefulExecutor{}
}
