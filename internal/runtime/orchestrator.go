package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/claudeless/claudeless/internal/failure"
	"github.com/claudeless/claudeless/internal/hooks"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/session"
	"github.com/claudeless/claudeless/internal/state"
	"github.com/claudeless/claudeless/internal/tools"
)

// finalToolResponse closes a turn whose response carried tool calls.
const finalToolResponse = "Done! The requested operation has been completed successfully."

// noScenarioResponse is returned when no scenario is loaded at all.
const noScenarioResponse = "Hello! I'm Claudeless!"

// FailureError carries a scenario failure out of Execute. The caller decides
// how to surface it (stderr message, result envelope, exit code).
type FailureError struct {
	Spec *scenario.FailureSpec
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("scenario failure: %s", e.Spec.Type)
}

// ToolOutcome pairs one executed tool call with its result.
type ToolOutcome struct {
	// Call is the tool call as declared by the scenario.
	Call scenario.ToolCallSpec
	// ToolUseID ties output events and log records together.
	ToolUseID string
	// Result is the executed (or blocked) outcome.
	Result tools.Result
}

// PendingPermission describes a tool call stopped on an interactive
// permission decision. The assistant tool_use record is already written;
// no tool result exists until the front-end resolves the call.
type PendingPermission struct {
	// Call is the stopped tool call.
	Call scenario.ToolCallSpec
	// ToolUseID was assigned before the permission check.
	ToolUseID string
	// AssistantUUID is the recorded tool_use record awaiting its result.
	AssistantUUID string
	// Action is the permission action that needs approval.
	Action string
}

// TurnResult is the merged outcome of one Execute call.
type TurnResult struct {
	// Text is the assistant text, newline-joined across sequenced turns.
	Text string
	// Usage is the synthetic usage from the last matched response, if any.
	Usage *scenario.UsageSpec
	// Tools lists every tool call executed this turn, in order.
	Tools []ToolOutcome
	// Pending is set when a tool call awaits an interactive decision.
	Pending *PendingPermission
	// IsHookContinuation marks turns triggered by a stop hook block.
	IsHookContinuation bool
	// HookContinuation is the next prompt when a stop hook blocked.
	HookContinuation string
}

// Orchestrator drives one prompt through match, tool execution, and hooks.
//
// It is not safe for concurrent use; print mode and the TUI both call it
// from a single goroutine.
type Orchestrator struct {
	ctx      *Context
	engine   *scenario.Engine // nil when no scenario is loaded
	executor tools.Executor
	state    *state.Writer    // nil when persistence is disabled
	hooks    *hooks.Executor  // nil when no hooks are configured
	timeouts scenario.ResolvedTimeouts
	log      zerolog.Logger

	stopHookActive bool
}

// NewOrchestrator wires the orchestrator. engine, stateWriter, and hookExec
// may be nil.
func NewOrchestrator(rc *Context, engine *scenario.Engine, executor tools.Executor, stateWriter *state.Writer, hookExec *hooks.Executor, timeouts scenario.ResolvedTimeouts, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ctx:      rc,
		engine:   engine,
		executor: executor,
		state:    stateWriter,
		hooks:    hookExec,
		timeouts: timeouts,
		log:      log,
	}
}

// Context returns the frozen runtime context.
func (o *Orchestrator) Context() *Context { return o.ctx }

// SetExecutor swaps the tool executor. The TUI rebuilds the permission
// checker when the user cycles permission modes.
func (o *Orchestrator) SetExecutor(executor tools.Executor) { o.executor = executor }

// StateWriter returns the state writer, or nil.
func (o *Orchestrator) StateWriter() *state.Writer { return o.state }

// Execute runs one turn: match the prompt, execute tool calls, fire hooks.
//
// A scenario failure short-circuits: it is recorded as a synthetic API-error
// assistant record and returned as a *FailureError. A tool call that needs
// an interactive permission decision stops the turn with TurnResult.Pending
// set; the front-end resolves it via ResolvePending.
func (o *Orchestrator) Execute(ctx context.Context, prompt string) (*TurnResult, error) {
	isContinuation := o.stopHookActive
	o.stopHookActive = false

	if !isContinuation && o.timeouts.ResponseDelayMS > 0 {
		if err := sleepCtx(ctx, o.timeouts.ResponseDelayMS); err != nil {
			return nil, err
		}
	}

	result := &TurnResult{IsHookContinuation: isContinuation}
	currentPrompt := prompt
	var texts []string

	// The inner loop auto-continues through queued sequenced turns whose
	// tool calls all execute without an interactive prompt. The iteration
	// cap guards against scenarios that re-arm on a synthesized prompt.
	for iteration := 0; iteration < 32; iteration++ {
		response, err := o.matchPrompt(currentPrompt)
		if err != nil {
			return nil, err
		}

		if response.DelayMS > 0 {
			if err := sleepCtx(ctx, response.DelayMS); err != nil {
				return nil, err
			}
		}
		if response.Text != "" {
			texts = append(texts, response.Text)
		}
		if response.Usage != nil {
			result.Usage = response.Usage
		}

		outcomes, pending, err := o.executeToolCalls(ctx, currentPrompt, response)
		if err != nil {
			return nil, err
		}
		result.Tools = append(result.Tools, outcomes...)
		if pending != nil {
			result.Pending = pending
			result.Text = strings.Join(texts, "\n")
			return result, nil
		}

		if o.engine == nil || !o.engine.SequenceActive() {
			break
		}
		currentPrompt = joinResultTexts(outcomes)
	}

	result.Text = strings.Join(texts, "\n")
	o.fireStopHook(ctx, result, isContinuation)
	return result, nil
}

// matchPrompt resolves the prompt to a response, short-circuiting failures.
func (o *Orchestrator) matchPrompt(prompt string) (*scenario.ResponseSpec, error) {
	if o.engine == nil {
		return &scenario.ResponseSpec{Text: noScenarioResponse}, nil
	}

	m := o.engine.MatchPrompt(prompt)
	if failure := o.engine.Failure(m); failure != nil {
		o.recordFailure(failure)
		return nil, &FailureError{Spec: failure}
	}
	if response := o.engine.Response(m); response != nil {
		return response, nil
	}
	return &scenario.ResponseSpec{}, nil
}

// recordFailure writes the synthetic API-error assistant record. This is
// the only path that produces "<synthetic>" records.
func (o *Orchestrator) recordFailure(spec *scenario.FailureSpec) {
	if o.state == nil {
		return
	}
	text, class, ok := failure.Describe(spec)
	if !ok {
		return
	}
	if err := o.state.RecordAPIError("", text, class); err != nil {
		o.log.Warn().Err(err).Msg("failed to record failure")
	}
}

// executeToolCalls runs a response's tool calls through the permission and
// hook pipeline, recording each step to the session log.
func (o *Orchestrator) executeToolCalls(ctx context.Context, prompt string, response *scenario.ResponseSpec) ([]ToolOutcome, *PendingPermission, error) {
	if len(response.ToolCalls) == 0 {
		if o.state != nil {
			if err := o.state.RecordTurn(prompt, response.Text); err != nil {
				return nil, nil, fmt.Errorf("record turn: %w", err)
			}
		}
		return nil, nil, nil
	}

	var userUUID string
	if o.state != nil {
		uuid, err := o.state.RecordUserMessage(prompt)
		if err != nil {
			return nil, nil, fmt.Errorf("record user message: %w", err)
		}
		userUUID = uuid
		if response.Text != "" {
			if _, err := o.state.RecordAssistantResponse(userUUID, response.Text); err != nil {
				return nil, nil, fmt.Errorf("record assistant response: %w", err)
			}
		}
	}

	execCtx := &tools.ExecutionContext{
		CWD:         o.ctx.WorkingDirectory,
		SessionID:   o.ctx.SessionID.String(),
		StateWriter: o.state,
	}

	outcomes := make([]ToolOutcome, 0, len(response.ToolCalls))
	for _, call := range response.ToolCalls {
		call = o.applyToolOverride(call)
		toolUseID := tools.NewToolUseID()

		var assistantUUID string
		if o.state != nil {
			block := session.ToolUseBlock(toolUseID, call.Tool, call.Input)
			uuid, err := o.state.RecordAssistantToolUse(userUUID, []session.ContentBlock{block})
			if err != nil {
				return nil, nil, fmt.Errorf("record tool use: %w", err)
			}
			assistantUUID = uuid
		}

		var result tools.Result
		if blocked, reason := o.firePreToolHook(ctx, call); blocked {
			result = tools.Failure(toolUseID, reason)
		} else {
			result = o.executor.Execute(call, toolUseID, execCtx)
		}

		if result.NeedsPrompt {
			pending := &PendingPermission{
				Call:          call,
				ToolUseID:     toolUseID,
				AssistantUUID: assistantUUID,
				Action:        tools.Action(call.Tool),
			}
			return outcomes, pending, nil
		}

		if err := o.recordToolResult(toolUseID, assistantUUID, result); err != nil {
			return nil, nil, err
		}
		o.firePostToolHook(ctx, call, result)
		outcomes = append(outcomes, ToolOutcome{Call: call, ToolUseID: toolUseID, Result: result})
	}

	if o.state != nil {
		if _, err := o.state.RecordAssistantResponseFinal(userUUID, finalToolResponse); err != nil {
			return nil, nil, fmt.Errorf("record final response: %w", err)
		}
	}
	return outcomes, nil, nil
}

// applyToolOverride fills a missing canned result from the scenario's
// per-tool configuration.
func (o *Orchestrator) applyToolOverride(call scenario.ToolCallSpec) scenario.ToolCallSpec {
	if call.Result != "" || o.engine == nil {
		return call
	}
	if cfg, ok := o.engine.ToolConfigFor(call.Tool); ok && cfg.Result != "" {
		call.Result = cfg.Result
	}
	return call
}

func (o *Orchestrator) recordToolResult(toolUseID, assistantUUID string, result tools.Result) error {
	if o.state == nil {
		return nil
	}
	toolUseResult := result.ToolUseResult
	if toolUseResult == nil {
		toolUseResult = map[string]any{}
	}
	if _, err := o.state.RecordToolResult(toolUseID, result.Text(), assistantUUID, toolUseResult); err != nil {
		return fmt.Errorf("record tool result: %w", err)
	}
	return nil
}

// ResolvePending finishes a tool call stopped on a permission prompt. When
// approved the call executes and its result is recorded; when denied a
// permission-denied result is recorded instead.
func (o *Orchestrator) ResolvePending(ctx context.Context, pending *PendingPermission, approved bool) (tools.Result, error) {
	var result tools.Result
	if approved {
		execCtx := &tools.ExecutionContext{
			CWD:         o.ctx.WorkingDirectory,
			SessionID:   o.ctx.SessionID.String(),
			StateWriter: o.state,
		}
		executor := o.executor
		if wrapped, ok := executor.(*tools.PermissionCheckingExecutor); ok {
			executor = wrapped.Inner()
		}
		result = executor.Execute(pending.Call, pending.ToolUseID, execCtx)
	} else {
		result = tools.PermissionDenied(pending.ToolUseID, "rejected by user")
	}
	if err := o.recordToolResult(pending.ToolUseID, pending.AssistantUUID, result); err != nil {
		return result, err
	}
	o.firePostToolHook(ctx, pending.Call, result)
	return result, nil
}

// firePreToolHook runs PreToolUse hooks. A non-proceed response blocks the
// call with the hook's error string as the reason.
func (o *Orchestrator) firePreToolHook(ctx context.Context, call scenario.ToolCallSpec) (blocked bool, reason string) {
	if o.hooks == nil || !o.hooks.HasHooks(hooks.EventPreToolUse) {
		return false, ""
	}
	msg := hooks.ToolMessage(hooks.EventPreToolUse, o.ctx.SessionID.String(), call.Tool, call.Input, "")
	for _, resp := range o.hooks.Execute(ctx, msg) {
		if !resp.Proceed {
			reason = resp.Error
			if reason == "" {
				reason = "Blocked by PreToolUse hook"
			}
			return true, reason
		}
	}
	return false, ""
}

// firePostToolHook runs PostToolUse hooks, fire-and-forget.
func (o *Orchestrator) firePostToolHook(ctx context.Context, call scenario.ToolCallSpec, result tools.Result) {
	if o.hooks == nil || !o.hooks.HasHooks(hooks.EventPostToolUse) {
		return
	}
	msg := hooks.ToolMessage(hooks.EventPostToolUse, o.ctx.SessionID.String(), call.Tool, call.Input, result.Text())
	o.hooks.Execute(ctx, msg)
}

// fireStopHook runs Stop hooks after the response completes. A block sets
// the continuation prompt for the caller to re-invoke with. Continuation is
// honored at most one level deep.
func (o *Orchestrator) fireStopHook(ctx context.Context, result *TurnResult, wasContinuation bool) {
	if wasContinuation || o.hooks == nil || !o.hooks.HasHooks(hooks.EventStop) {
		return
	}
	msg := hooks.StopMessage(o.ctx.SessionID.String(), wasContinuation)
	for _, resp := range o.hooks.Execute(ctx, msg) {
		if blocked, reason := resp.BlockInfo(); blocked {
			if reason == "" {
				reason = "continue"
			}
			result.HookContinuation = reason
			o.stopHookActive = true
			return
		}
	}
}

// joinResultTexts synthesizes the next sequenced prompt from tool results.
func joinResultTexts(outcomes []ToolOutcome) string {
	texts := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		if text := outcome.Result.Text(); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n")
}

func sleepCtx(ctx context.Context, ms int64) error {
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
