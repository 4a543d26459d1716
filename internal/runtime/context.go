// Package runtime merges scenario configuration with CLI values into a
// frozen session context and drives prompt execution through the scenario
// engine, permission checker, hooks, and state writer.
package runtime

import (
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/claudeless/claudeless/internal/config"
	"github.com/claudeless/claudeless/internal/permission"
	"github.com/claudeless/claudeless/internal/scenario"
)

// Params carries the CLI values that participate in context precedence.
// Zero values mean "not set on the command line".
type Params struct {
	// Model is the --model flag value.
	Model string
	// SessionID is the --session-id flag value.
	SessionID string
	// WorkingDirectory is the --cwd flag value.
	WorkingDirectory string
	// ClaudeVersion is the --claude-version flag value.
	ClaudeVersion string
	// PermissionMode is the parsed --permission-mode flag value.
	PermissionMode permission.Mode
}

// Context is the merged session identity, computed once per invocation.
//
// Precedence: CLI value > scenario value > built-in default, except the
// launch timestamp where the scenario overrides "now".
type Context struct {
	// Model reported in output and record envelopes.
	Model string
	// ClaudeVersion is the simulated CLI version string.
	ClaudeVersion string
	// UserName is the display name shown in the TUI header.
	UserName string
	// SessionID identifies this session.
	SessionID uuid.UUID
	// ProjectPath names the state directory for this project.
	ProjectPath string
	// WorkingDirectory is the simulated cwd.
	WorkingDirectory string
	// LaunchTimestamp is the session start time.
	LaunchTimestamp time.Time
	// Trusted controls the TUI trust prompt.
	Trusted bool
	// LoggedIn controls the TUI setup wizard.
	LoggedIn bool
	// PermissionMode governs tool permission checks.
	PermissionMode permission.Mode

	settings *config.ClaudeSettings
	patterns permission.Patterns
}

// Build computes the context from an optional scenario config, CLI params,
// and merged settings. settings may be nil.
func Build(cfg *scenario.Config, params Params, settings *config.ClaudeSettings) *Context {
	if settings == nil {
		settings = &config.ClaudeSettings{}
	}

	model := params.Model
	if model == "" && cfg != nil {
		model = cfg.DefaultModel
	}
	if model == "" {
		model = scenario.DefaultModel
	}

	version := params.ClaudeVersion
	if version == "" && cfg != nil {
		version = cfg.ClaudeVersion
	}
	if version == "" {
		version = scenario.DefaultClaudeVersion
	}

	userName := scenario.DefaultUserName
	if cfg != nil && cfg.UserName != "" {
		userName = cfg.UserName
	}

	sessionID := parseSessionID(params.SessionID)
	if sessionID == uuid.Nil && cfg != nil {
		sessionID = parseSessionID(cfg.SessionID)
	}
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}

	workingDir := params.WorkingDirectory
	if workingDir == "" && cfg != nil {
		workingDir = cfg.WorkingDirectory
	}
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}

	projectPath := workingDir
	if cfg != nil && cfg.ProjectPath != "" {
		projectPath = cfg.ProjectPath
	}

	launch := time.Now().UTC()
	if cfg != nil && cfg.LaunchTimestamp != "" {
		if ts, err := time.Parse(time.RFC3339, cfg.LaunchTimestamp); err == nil {
			launch = ts.UTC()
		}
	}

	mode := params.PermissionMode
	if cfg != nil && cfg.PermissionMode != "" {
		if parsed, err := permission.ParseMode(cfg.PermissionMode); err == nil {
			mode = parsed
		}
	}
	if mode == "" {
		mode = permission.ModeDefault
	}

	trusted := true
	loggedIn := true
	if cfg != nil {
		trusted = cfg.IsTrusted()
		loggedIn = cfg.IsLoggedIn()
	}

	return &Context{
		Model:            model,
		ClaudeVersion:    version,
		UserName:         userName,
		SessionID:        sessionID,
		ProjectPath:      projectPath,
		WorkingDirectory: workingDir,
		LaunchTimestamp:  launch,
		Trusted:          trusted,
		LoggedIn:         loggedIn,
		PermissionMode:   mode,
		settings:         settings,
		patterns:         permission.CompilePatterns(settings.Permissions.Allow, settings.Permissions.Deny),
	}
}

func parseSessionID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Settings returns the merged settings behind the context.
func (c *Context) Settings() *config.ClaudeSettings { return c.settings }

// Patterns returns the compiled allow/deny patterns from settings.
func (c *Context) Patterns() permission.Patterns { return c.patterns }

// SettingsEnv returns environment overrides from settings.
func (c *Context) SettingsEnv() map[string]string { return c.settings.Env }

// AdditionalDirectories returns extra accessible directories from settings.
func (c *Context) AdditionalDirectories() []string {
	return c.settings.Permissions.AdditionalDirectories
}

// Checker freezes the context's mode, bypass flags, settings patterns, and
// scenario per-tool overrides into a permission checker.
func (c *Context) Checker(bypass permission.Bypass, overrides map[string]scenario.ToolConfig) *permission.Checker {
	return permission.NewChecker(c.PermissionMode, bypass, c.patterns, overrides)
}
