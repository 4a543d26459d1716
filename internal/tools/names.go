package tools

import (
	"encoding/json"
	"strings"
)

// Known tool names. The simulator recognizes the full built-in tool surface
// even though execution is mocked.
const (
	NameBash         = "Bash"
	NameRead         = "Read"
	NameWrite        = "Write"
	NameEdit         = "Edit"
	NameGlob         = "Glob"
	NameGrep         = "Grep"
	NameTodoWrite    = "TodoWrite"
	NameExitPlanMode = "ExitPlanMode"
	NameWebFetch     = "WebFetch"
	NameWebSearch    = "WebSearch"
	NameNotebookEdit = "NotebookEdit"
	NameTask         = "Task"
)

// KnownNames lists every recognized tool in the order surfaced by the
// system init event.
func KnownNames() []string {
	return []string{
		NameBash, NameRead, NameWrite, NameEdit, NameGlob, NameGrep,
		NameTodoWrite, NameExitPlanMode, NameWebFetch, NameWebSearch,
		NameNotebookEdit, NameTask,
	}
}

// IsKnown reports whether name is a recognized built-in tool.
func IsKnown(name string) bool {
	for _, known := range KnownNames() {
		if known == name {
			return true
		}
	}
	return false
}

// Action maps a tool to its permission action category. Unknown tools,
// including MCP tools, default to execute.
func Action(tool string) string {
	switch tool {
	case NameBash:
		return "execute"
	case NameRead, NameGlob, NameGrep:
		return "read"
	case NameWrite, NameEdit, NameNotebookEdit:
		return "write"
	case NameWebFetch, NameWebSearch:
		return "network"
	case NameTask:
		return "delegate"
	case NameTodoWrite, NameExitPlanMode:
		return "state"
	default:
		return "execute"
	}
}

// SalientInput extracts the argument text permission patterns match against:
// the command for Bash, the file path for file tools, empty otherwise.
func SalientInput(tool string, input map[string]any) string {
	switch tool {
	case NameBash:
		return stringField(input, "command")
	case NameRead, NameWrite, NameEdit, NameNotebookEdit:
		if path := stringField(input, "file_path"); path != "" {
			return path
		}
		return stringField(input, "path")
	case NameGlob, NameGrep:
		return stringField(input, "pattern")
	default:
		return ""
	}
}

// Fingerprint identifies a tool invocation for session permission grants.
// Approving one fingerprint approves repeats of the same shape: any `npm`
// command, edits to one file, and so on.
func Fingerprint(tool string, input map[string]any) string {
	switch tool {
	case NameBash:
		command := stringField(input, "command")
		if fields := strings.Fields(command); len(fields) > 0 {
			return tool + ":" + fields[0]
		}
		return tool
	case NameWrite, NameEdit, NameNotebookEdit:
		if path := SalientInput(tool, input); path != "" {
			return tool + ":" + path
		}
		return tool
	default:
		if len(input) == 0 {
			return tool
		}
		raw, err := json.Marshal(input)
		if err != nil {
			return tool
		}
		return tool + ":" + string(raw)
	}
}

func stringField(input map[string]any, key string) string {
	if input == nil {
		return ""
	}
	if value, ok := input[key].(string); ok {
		return value
	}
	return ""
}
