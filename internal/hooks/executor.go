package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeoutMS bounds one hook subprocess when no timeout is configured.
const DefaultTimeoutMS int64 = 5000

// ErrTimeout is returned when a hook subprocess exceeds its timeout.
var ErrTimeout = errors.New("hook execution timed out")

// Config describes one registered hook command.
type Config struct {
	// ScriptPath is the shell script executed via /bin/bash.
	ScriptPath string
	// TimeoutMS bounds the subprocess; DefaultTimeoutMS when zero.
	TimeoutMS int64
	// Blocking stops processing further hooks when this one denies.
	Blocking bool
	// Matcher is an optional pipe-separated filter matched against the
	// tool name (tool events) or notification type (notifications).
	Matcher string
}

// Executor runs the registered hook commands for each event.
//
// Every payload is flattened into a single JSON object carrying the event
// fields plus hook_event_name, session_id, and the common context fields
// (cwd, transcript_path, permission_mode).
type Executor struct {
	hooks map[Event][]Config

	// Common context injected into every payload.
	cwd            string
	transcriptPath string
	permissionMode string

	log zerolog.Logger
}

// NewExecutor creates an empty executor. The logger receives warnings for
// failed non-blocking hooks.
func NewExecutor(log zerolog.Logger) *Executor {
	return &Executor{hooks: make(map[Event][]Config), log: log}
}

// SetContext sets the common fields injected into every hook payload.
func (e *Executor) SetContext(cwd, transcriptPath, permissionMode string) {
	e.cwd = cwd
	e.transcriptPath = transcriptPath
	e.permissionMode = permissionMode
}

// Register adds a hook command for an event.
func (e *Executor) Register(event Event, cfg Config) {
	e.hooks[event] = append(e.hooks[event], cfg)
}

// HasHooks reports whether any hook is registered for the event.
func (e *Executor) HasHooks(event Event) bool { return len(e.hooks[event]) > 0 }

// HookCount returns the number of hooks registered for the event.
func (e *Executor) HookCount(event Event) int { return len(e.hooks[event]) }

// RegisteredEvents lists events with at least one hook.
func (e *Executor) RegisteredEvents() []Event {
	var events []Event
	for ev, cfgs := range e.hooks {
		if len(cfgs) > 0 {
			events = append(events, ev)
		}
	}
	return events
}

// Clear removes all registered hooks.
func (e *Executor) Clear() { e.hooks = make(map[Event][]Config) }

// Execute runs every registered hook for the message's event, in
// registration order, and returns their normalized responses.
//
// Failed hooks are fail-safe: spawn errors, timeouts, non-2 failure exits,
// and unparseable stdout all log a warning and count as proceed. Exit code
// 2 blocks with the subprocess's stderr as the reason. A blocking hook that
// denies stops the remaining hooks.
func (e *Executor) Execute(ctx context.Context, msg Message) []Response {
	configs := e.hooks[msg.Event]
	if len(configs) == 0 {
		return nil
	}

	responses := make([]Response, 0, len(configs))
	for _, cfg := range configs {
		if !matcherApplies(cfg.Matcher, msg) {
			continue
		}
		resp, err := e.runHook(ctx, cfg, msg)
		if err != nil {
			e.log.Warn().
				Str("event", string(msg.Event)).
				Str("script", cfg.ScriptPath).
				Err(err).
				Msg("hook failed; proceeding")
			resp = Proceeded()
		}
		responses = append(responses, resp)
		if cfg.Blocking && !resp.Proceed {
			break
		}
	}
	return responses
}

// matcherApplies checks the pipe-separated matcher against the message's
// subject. Events without a subject always pass.
func matcherApplies(matcher string, msg Message) bool {
	if matcher == "" {
		return true
	}
	var subject string
	switch msg.Event {
	case EventPreToolUse, EventPostToolUse:
		subject, _ = msg.Fields["tool_name"].(string)
	case EventNotification:
		subject, _ = msg.Fields["notification_type"].(string)
	default:
		return true
	}
	for _, segment := range strings.Split(matcher, "|") {
		if strings.TrimSpace(segment) == subject {
			return true
		}
	}
	return false
}

func (e *Executor) runHook(ctx context.Context, cfg Config, msg Message) (Response, error) {
	payload, err := e.wirePayload(msg)
	if err != nil {
		return Response{}, fmt.Errorf("serialize hook payload: %w", err)
	}

	timeout := cfg.TimeoutMS
	if timeout <= 0 {
		timeout = DefaultTimeoutMS
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/bash", cfg.ScriptPath)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return Response{}, ErrTimeout
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// Exit code 2 is the block signal: stderr carries the reason.
			if exitErr.ExitCode() == 2 {
				return Blocked(strings.TrimSpace(stderr.String())), nil
			}
			return Response{}, fmt.Errorf("hook exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return Response{}, fmt.Errorf("spawn hook: %w", runErr)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return Proceeded(), nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return Response{}, fmt.Errorf("invalid hook response: %w", err)
	}
	return resp, nil
}

// wirePayload flattens the message into the single JSON object written to
// the hook's stdin.
func (e *Executor) wirePayload(msg Message) ([]byte, error) {
	wire := make(map[string]any, len(msg.Fields)+5)
	for k, v := range msg.Fields {
		wire[k] = v
	}
	wire["hook_event_name"] = string(msg.Event)
	wire["session_id"] = msg.SessionID
	if e.cwd != "" {
		wire["cwd"] = e.cwd
	}
	if e.transcriptPath != "" {
		wire["transcript_path"] = e.transcriptPath
	}
	if e.permissionMode != "" {
		wire["permission_mode"] = e.permissionMode
	}
	return json.Marshal(wire)
}
