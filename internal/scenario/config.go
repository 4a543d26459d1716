package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultModel is the model name reported when no override is given.
const DefaultModel = "claude-opus-4-5-20251101"

// DefaultClaudeVersion is the Claude CLI version the simulator mimics.
const DefaultClaudeVersion = "2.1.12"

// DefaultUserName is the display name used when no override is given.
const DefaultUserName = "Alfred"

// ValidPermissionModes lists the permission modes a scenario may name.
var ValidPermissionModes = []string{
	"default",
	"plan",
	"bypass-permissions",
	"accept-edits",
	"dont-ask",
	"delegate",
}

// Config is the declarative scenario structure decoded from a TOML, JSON,
// or YAML scenario file. It is immutable after Load.
type Config struct {
	// Name identifies the scenario in logs.
	Name string `json:"name"`
	// DefaultResponse is returned when no rule matches.
	DefaultResponse *ResponseSpec `json:"default_response"`
	// Responses are the ordered matching rules.
	Responses []Rule `json:"responses"`
	// Conversations are named multi-turn flows addressable by tests.
	Conversations map[string]Conversation `json:"conversations"`
	// ToolExecution configures the tool executor.
	ToolExecution *ToolExecutionConfig `json:"tool_execution"`

	// DefaultModel overrides the reported model (CLI flag wins).
	DefaultModel string `json:"default_model"`
	// ClaudeVersion overrides the simulated Claude version string.
	ClaudeVersion string `json:"claude_version"`
	// UserName overrides the display name shown in the TUI header.
	UserName string `json:"user_name"`
	// SessionID pins the session UUID for deterministic file paths.
	SessionID string `json:"session_id"`
	// Placeholder overrides the input prompt placeholder text.
	Placeholder string `json:"placeholder"`
	// Provider is the subscription name shown in the header.
	Provider string `json:"provider"`

	// ProjectPath overrides the project path used for state naming.
	ProjectPath string `json:"project_path"`
	// WorkingDirectory is the simulated cwd (default: actual cwd).
	WorkingDirectory string `json:"working_directory"`
	// Trusted controls the TUI trust prompt (default true).
	Trusted *bool `json:"trusted"`
	// LoggedIn controls the TUI setup wizard (default true).
	LoggedIn *bool `json:"logged_in"`
	// PermissionMode overrides the permission mode.
	PermissionMode string `json:"permission_mode"`

	// LaunchTimestamp fixes the session start time (RFC3339).
	LaunchTimestamp string `json:"launch_timestamp"`
	// Timeouts overrides timing defaults.
	Timeouts *TimeoutOverrides `json:"timeouts"`
}

// Validate reports the first structural problem in the config.
func (c *Config) Validate() error {
	if c.SessionID != "" {
		if _, err := uuid.Parse(c.SessionID); err != nil {
			return fmt.Errorf("invalid session_id %q: must be a valid UUID", c.SessionID)
		}
	}
	if c.LaunchTimestamp != "" {
		if _, err := time.Parse(time.RFC3339, c.LaunchTimestamp); err != nil {
			return fmt.Errorf("invalid launch_timestamp %q: must be RFC3339 (e.g., 2025-01-15T10:30:00Z)", c.LaunchTimestamp)
		}
	}
	if c.PermissionMode != "" && !validPermissionMode(c.PermissionMode) {
		return fmt.Errorf("invalid permission_mode %q: must be one of %v", c.PermissionMode, ValidPermissionModes)
	}
	for i, rule := range c.Responses {
		if rule.Response == nil && rule.Failure == nil {
			return fmt.Errorf("responses[%d]: rule needs a response or a failure", i)
		}
	}
	return nil
}

func validPermissionMode(mode string) bool {
	lower := strings.ToLower(mode)
	for _, m := range ValidPermissionModes {
		if m == lower {
			return true
		}
	}
	return false
}

// Rule is a single prompt-matching rule.
type Rule struct {
	// Pattern matches the incoming prompt (entry pattern for sequences).
	Pattern PatternSpec `json:"pattern"`
	// Response is returned on match; optional when Failure is set.
	Response *ResponseSpec `json:"response"`
	// Failure is injected instead of responding.
	Failure *FailureSpec `json:"failure"`
	// MaxMatches caps how many prompts this rule may claim (0 = unlimited).
	MaxMatches int `json:"max_matches"`
	// Turns are follow-up turns matched in sequence after the entry match.
	Turns []Turn `json:"turns"`
}

// Turn is one expected step of a sequenced conversation.
type Turn struct {
	// Expect is the pattern the next prompt must satisfy.
	Expect PatternSpec `json:"expect"`
	// Response is returned when Expect matches.
	Response ResponseSpec `json:"response"`
	// Failure is injected instead of the response.
	Failure *FailureSpec `json:"failure"`
}

// Conversation is a named multi-turn flow.
type Conversation struct {
	Turns []Turn `json:"turns"`
}

// PatternKind enumerates the prompt-matching strategies.
type PatternKind string

const (
	// PatternExact requires full string equality.
	PatternExact PatternKind = "exact"
	// PatternRegex matches with a regular expression.
	PatternRegex PatternKind = "regex"
	// PatternGlob matches with shell-style wildcards.
	PatternGlob PatternKind = "glob"
	// PatternContains requires a substring.
	PatternContains PatternKind = "contains"
	// PatternAny matches every prompt.
	PatternAny PatternKind = "any"
)

// PatternSpec is the declarative form of a prompt pattern.
type PatternSpec struct {
	// Type selects the matching strategy.
	Type PatternKind `json:"type"`
	// Text is the operand for exact and contains patterns.
	Text string `json:"text"`
	// Pattern is the operand for regex and glob patterns.
	Pattern string `json:"pattern"`
}

// ResponseSpec describes what the simulated assistant says. Scenario files
// may write it as a bare string or as a detailed table.
type ResponseSpec struct {
	// Text is the assistant text content.
	Text string `json:"text"`
	// ToolCalls are simulated tool invocations in this response.
	ToolCalls []ToolCallSpec `json:"tool_calls"`
	// Usage reports synthetic token stats in JSON output.
	Usage *UsageSpec `json:"usage"`
	// DelayMS suspends before responding.
	DelayMS int64 `json:"delay_ms"`
}

// UnmarshalJSON accepts either a plain string or the detailed object form.
func (r *ResponseSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ResponseSpec{Text: s}
		return nil
	}
	type detailed ResponseSpec
	var d detailed
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*r = ResponseSpec(d)
	return nil
}

// ToolCallSpec is a simulated tool call inside a response.
type ToolCallSpec struct {
	// Tool is the tool name (e.g. "Read", "Bash").
	Tool string `json:"tool"`
	// Input is the JSON input object passed to the tool.
	Input map[string]any `json:"input"`
	// Result overrides the mock result text for this call.
	Result string `json:"result"`
}

// UsageSpec carries synthetic token statistics.
type UsageSpec struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// FailureKind enumerates injectable API failures.
type FailureKind string

const (
	// FailureNetworkUnreachable simulates a network-down error.
	FailureNetworkUnreachable FailureKind = "network_unreachable"
	// FailureConnectionTimeout simulates a hung connection.
	FailureConnectionTimeout FailureKind = "connection_timeout"
	// FailureAuthError simulates an invalid-credentials response.
	FailureAuthError FailureKind = "auth_error"
	// FailureRateLimit simulates a 429 with retry-after.
	FailureRateLimit FailureKind = "rate_limit"
	// FailureOutOfCredits simulates an exhausted balance.
	FailureOutOfCredits FailureKind = "out_of_credits"
	// FailurePartialResponse truncates the response mid-stream.
	FailurePartialResponse FailureKind = "partial_response"
	// FailureMalformedJSON emits unparseable bytes.
	FailureMalformedJSON FailureKind = "malformed_json"
)

// FailureSpec is the declarative form of an injected failure.
type FailureSpec struct {
	// Type selects the failure variant.
	Type FailureKind `json:"type"`
	// AfterMS delays the connection-timeout variant.
	AfterMS int64 `json:"after_ms"`
	// Message customizes the auth-error variant.
	Message string `json:"message"`
	// RetryAfter is the rate-limit retry window in seconds.
	RetryAfter int64 `json:"retry_after"`
	// PartialText is emitted before the partial-response cutoff.
	PartialText string `json:"partial_text"`
	// Raw is the byte payload of the malformed-json variant.
	Raw string `json:"raw"`
}

// ToolExecutionConfig configures the tool executor.
type ToolExecutionConfig struct {
	// Mode selects mock or live execution.
	Mode ToolExecutionMode `json:"mode"`
	// Tools holds per-tool overrides keyed by tool name.
	Tools map[string]ToolConfig `json:"tools"`
}

// ToolExecutionMode selects how tool calls are satisfied.
type ToolExecutionMode string

const (
	// ToolModeMock returns pre-configured results from the scenario.
	ToolModeMock ToolExecutionMode = "mock"
	// ToolModeLive executes built-in mock tools directly.
	ToolModeLive ToolExecutionMode = "live"
)

// ToolConfig overrides behavior for one tool.
type ToolConfig struct {
	// AutoApprove skips the permission prompt for this tool.
	AutoApprove bool `json:"auto_approve"`
	// Result is a canned result returned instead of executing.
	Result string `json:"result"`
	// Error simulates a tool failure with this message.
	Error string `json:"error"`
	// Answers pre-configures AskUserQuestion selections by question text.
	Answers map[string]string `json:"answers"`
}

// TimeoutOverrides is the scenario [timeouts] section.
type TimeoutOverrides struct {
	ExitHintMS      int64 `json:"exit_hint_ms"`
	CompactDelayMS  int64 `json:"compact_delay_ms"`
	HookTimeoutMS   int64 `json:"hook_timeout_ms"`
	McpTimeoutMS    int64 `json:"mcp_timeout_ms"`
	ResponseDelayMS int64 `json:"response_delay_ms"`
}

// LoadConfig reads and validates a scenario file. The format is chosen by
// extension: .json decodes as JSON, .yaml/.yml as YAML, anything else as
// TOML. File references in tool-call inputs are resolved relative to the
// file's directory. A directory path loads every scenario file inside it in
// name order and merges them.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	if info.IsDir() {
		return loadConfigDir(path)
	}
	return loadConfigFile(path)
}

func loadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	// Decode into a generic tree first so all three formats share one
	// typed-decoding path, then resolve $file references on the tree.
	var tree map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse scenario JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse scenario YAML: %w", err)
		}
	default:
		if err := toml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse scenario TOML: %w", err)
		}
	}

	resolved, err := resolveFileRefs(tree, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	normalized, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("normalize scenario: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadConfigDir(dir string) (*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".toml", ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	merged := &Config{}
	for _, p := range paths {
		cfg, err := loadConfigFile(p)
		if err != nil {
			return nil, err
		}
		merged.mergeFrom(cfg)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// mergeFrom appends rules and conversations and fills unset scalars.
func (c *Config) mergeFrom(other *Config) {
	c.Responses = append(c.Responses, other.Responses...)
	if len(other.Conversations) > 0 {
		if c.Conversations == nil {
			c.Conversations = make(map[string]Conversation, len(other.Conversations))
		}
		for name, conv := range other.Conversations {
			c.Conversations[name] = conv
		}
	}
	if c.Name == "" {
		c.Name = other.Name
	}
	if c.DefaultResponse == nil {
		c.DefaultResponse = other.DefaultResponse
	}
	if c.ToolExecution == nil {
		c.ToolExecution = other.ToolExecution
	}
	if c.DefaultModel == "" {
		c.DefaultModel = other.DefaultModel
	}
	if c.ClaudeVersion == "" {
		c.ClaudeVersion = other.ClaudeVersion
	}
	if c.UserName == "" {
		c.UserName = other.UserName
	}
	if c.SessionID == "" {
		c.SessionID = other.SessionID
	}
	if c.Placeholder == "" {
		c.Placeholder = other.Placeholder
	}
	if c.Provider == "" {
		c.Provider = other.Provider
	}
	if c.ProjectPath == "" {
		c.ProjectPath = other.ProjectPath
	}
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = other.WorkingDirectory
	}
	if c.Trusted == nil {
		c.Trusted = other.Trusted
	}
	if c.LoggedIn == nil {
		c.LoggedIn = other.LoggedIn
	}
	if c.PermissionMode == "" {
		c.PermissionMode = other.PermissionMode
	}
	if c.LaunchTimestamp == "" {
		c.LaunchTimestamp = other.LaunchTimestamp
	}
	if c.Timeouts == nil {
		c.Timeouts = other.Timeouts
	}
}

// IsTrusted reports the trusted flag with its default of true.
func (c *Config) IsTrusted() bool {
	return c.Trusted == nil || *c.Trusted
}

// IsLoggedIn reports the logged-in flag with its default of true.
func (c *Config) IsLoggedIn() bool {
	return c.LoggedIn == nil || *c.LoggedIn
}
