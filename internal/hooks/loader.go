package hooks

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// SettingsCommand is one command entry in a settings hooks block.
type SettingsCommand struct {
	// Type is the command kind; only "command" entries are executable.
	Type string `json:"type"`
	// Command is the shell command to run.
	Command string `json:"command"`
	// Timeout bounds the command in milliseconds (0 = default).
	Timeout int64 `json:"timeout,omitempty"`
}

// SettingsMatcher groups commands under an optional tool-name matcher, as
// written in settings.json:
//
//	"hooks": {
//	  "PreToolUse": [
//	    {"matcher": "Bash|Edit", "hooks": [{"type": "command", "command": "..."}]}
//	  ]
//	}
type SettingsMatcher struct {
	// Matcher is a pipe-separated subject filter; empty matches all.
	Matcher string `json:"matcher,omitempty"`
	// Hooks are the commands to run when the matcher applies.
	Hooks []SettingsCommand `json:"hooks"`
}

// Settings is the hooks block of a settings file, keyed by event name.
type Settings map[string][]SettingsMatcher

// LoadFromSettings builds an executor from a settings hooks block. Each
// command is materialized as a temporary shell script. Unknown event names
// and non-command entries are skipped.
func LoadFromSettings(settings Settings, defaultTimeoutMS int64, log zerolog.Logger) (*Executor, error) {
	executor := NewExecutor(log)
	for eventName, matchers := range settings {
		event, ok := knownEvent(eventName)
		if !ok {
			continue
		}
		for _, matcher := range matchers {
			for _, cmd := range matcher.Hooks {
				if cmd.Type != "command" && cmd.Type != "bash" {
					continue
				}
				scriptPath, err := writeHookScript(cmd.Command)
				if err != nil {
					return nil, err
				}
				timeout := cmd.Timeout
				if timeout <= 0 {
					timeout = defaultTimeoutMS
				}
				executor.Register(event, Config{
					ScriptPath: scriptPath,
					TimeoutMS:  timeout,
					Blocking:   true,
					Matcher:    matcher.Matcher,
				})
			}
		}
	}
	return executor, nil
}

func knownEvent(name string) (Event, bool) {
	switch Event(name) {
	case EventPreToolUse, EventPostToolUse, EventNotification,
		EventPermissionRequest, EventSessionStart, EventSessionEnd,
		EventUserPromptSubmit, EventPreCompact, EventStop:
		return Event(name), true
	}
	return "", false
}

// writeHookScript persists a settings command as an executable script so
// the executor can run it via /bin/bash.
func writeHookScript(command string) (string, error) {
	file, err := os.CreateTemp("", "claudeless-hook-*.sh")
	if err != nil {
		return "", fmt.Errorf("create hook script: %w", err)
	}
	defer file.Close()
	if _, err := fmt.Fprintf(file, "#!/bin/bash\n%s\n", command); err != nil {
		return "", fmt.Errorf("write hook script: %w", err)
	}
	if err := os.Chmod(file.Name(), 0o755); err != nil {
		return "", fmt.Errorf("chmod hook script: %w", err)
	}
	return file.Name(), nil
}
