package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/claudeless/claudeless/internal/hooks"
)

// PermissionSettings is the permissions block of a settings file:
//
//	{
//	  "permissions": {
//	    "allow": ["Bash(npm test)", "Read"],
//	    "deny": ["Bash(rm *)"],
//	    "additionalDirectories": ["/tmp/workspace"]
//	  }
//	}
type PermissionSettings struct {
	// Allow lists tool patterns that skip the permission prompt.
	Allow []string `json:"allow,omitempty"`
	// Deny lists tool patterns that are always rejected.
	Deny []string `json:"deny,omitempty"`
	// AdditionalDirectories extends access beyond the project root.
	AdditionalDirectories []string `json:"additionalDirectories,omitempty"`
}

// McpServerConfig describes an MCP server entry. Servers are parsed and
// reported, never spawned.
type McpServerConfig struct {
	// Command spawns the server.
	Command string `json:"command"`
	// Args are arguments for the command.
	Args []string `json:"args,omitempty"`
	// Env holds environment variables for the server.
	Env map[string]string `json:"env,omitempty"`
	// Cwd is the server working directory.
	Cwd string `json:"cwd,omitempty"`
	// TimeoutMS bounds server startup in milliseconds.
	TimeoutMS int64 `json:"timeoutMs,omitempty"`
}

// ClaudeSettings is the full settings file schema. Unknown fields are
// retained in Extra so newer settings files round-trip without loss.
type ClaudeSettings struct {
	// Permissions configures the permission checker.
	Permissions PermissionSettings `json:"permissions,omitempty"`
	// McpServers maps server names to their definitions.
	McpServers map[string]McpServerConfig `json:"mcpServers,omitempty"`
	// Env holds environment variable overrides.
	Env map[string]string `json:"env,omitempty"`
	// Hooks configures lifecycle hook commands by event name.
	Hooks hooks.Settings `json:"hooks,omitempty"`
	// Extra captures unrecognized fields for forward compatibility.
	Extra map[string]json.RawMessage `json:"-"`
}

// settingsKnownFields are stripped from the raw map when collecting Extra.
var settingsKnownFields = []string{"permissions", "mcpServers", "env", "hooks"}

// UnmarshalJSON decodes known fields into the schema and keeps the rest
// in Extra.
func (s *ClaudeSettings) UnmarshalJSON(data []byte) error {
	type schema ClaudeSettings
	var known schema
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	*s = ClaudeSettings(known)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, field := range settingsKnownFields {
		delete(raw, field)
	}
	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}

// LoadSettings reads a settings JSON file.
func LoadSettings(path string) (*ClaudeSettings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSettings(raw)
}

// ParseSettings parses settings JSON.
func ParseSettings(raw []byte) (*ClaudeSettings, error) {
	var settings ClaudeSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return &settings, nil
}

// Merge applies overlay values on top of the receiver. Non-empty permission
// arrays replace; maps merge with overlay entries winning.
func (s *ClaudeSettings) Merge(overlay *ClaudeSettings) {
	if overlay == nil {
		return
	}

	if len(overlay.Permissions.Allow) > 0 {
		s.Permissions.Allow = overlay.Permissions.Allow
	}
	if len(overlay.Permissions.Deny) > 0 {
		s.Permissions.Deny = overlay.Permissions.Deny
	}
	if len(overlay.Permissions.AdditionalDirectories) > 0 {
		s.Permissions.AdditionalDirectories = overlay.Permissions.AdditionalDirectories
	}

	for name, server := range overlay.McpServers {
		if s.McpServers == nil {
			s.McpServers = make(map[string]McpServerConfig)
		}
		s.McpServers[name] = server
	}

	for key, value := range overlay.Env {
		if s.Env == nil {
			s.Env = make(map[string]string)
		}
		s.Env[key] = value
	}

	for event, matchers := range overlay.Hooks {
		if s.Hooks == nil {
			s.Hooks = make(hooks.Settings)
		}
		s.Hooks[event] = matchers
	}

	for key, value := range overlay.Extra {
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[key] = value
	}
}
