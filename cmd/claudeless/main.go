package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/claudeless/claudeless/internal/config"
	"github.com/claudeless/claudeless/internal/failure"
	"github.com/claudeless/claudeless/internal/hooks"
	"github.com/claudeless/claudeless/internal/permission"
	"github.com/claudeless/claudeless/internal/runtime"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/state"
	"github.com/claudeless/claudeless/internal/tools"
)

// claudelessVersion is the simulator build version.
const claudelessVersion = "0.1.0"

// Environment fallbacks for the simulation controls.
const (
	envScenario      = "CLAUDELESS_SCENARIO"
	envFailure       = "CLAUDELESS_FAILURE"
	envClaudeVersion = "CLAUDELESS_CLAUDE_VERSION"
)

// options holds all CLI flags with Claude Code-compatible names. Flags the
// simulator accepts but does not act on are kept so callers' scripts run
// unchanged.
type options struct {
	// AddDirs are extra directories added to the permission allowlist.
	AddDirs []string
	// Agent selects a named agent profile.
	Agent string
	// AgentsJSON provides inline JSON agent definitions.
	AgentsJSON string
	// AllowDangerouslySkipPermissions toggles the availability of bypass mode.
	AllowDangerouslySkipPermissions bool
	// AllowRealBash is accepted for compatibility; Bash stays mocked.
	AllowRealBash bool
	// AllowedTools restricts tool usage to a whitelist.
	AllowedTools string
	// AppendSystemPrompt appends extra system instructions.
	AppendSystemPrompt string
	// Betas adds beta headers in upstream requests.
	Betas []string
	// Capture writes a copy of stdout traffic to a file.
	Capture string
	// Chrome toggles browser integration.
	Chrome bool
	// ClaudeVersion switches branding and envelope versions to simulate a
	// specific Claude CLI release.
	ClaudeVersion string
	// Continue resumes the most recent session in the current project.
	Continue bool
	// Cwd overrides the working directory reported in records.
	Cwd string
	// DangerouslySkipPermissions bypasses tool permission checks.
	DangerouslySkipPermissions bool
	// Debug toggles debug logging, optionally filtered by category.
	Debug string
	// DebugFile tees debug logs to a file path.
	DebugFile string
	// DisableSlashCommands disables slash-command parsing in the TUI.
	DisableSlashCommands bool
	// DisallowedTools blocks specific tools even if available.
	DisallowedTools string
	// Failure injects an API failure mode.
	Failure string
	// FallbackModel is accepted for compatibility.
	FallbackModel string
	// FileSpecs defines preloaded file resources.
	FileSpecs []string
	// ForkSession controls whether resume forks the session id.
	ForkSession bool
	// IDE is accepted for compatibility.
	IDE bool
	// IncludePartialMessages toggles partial message streaming in print mode.
	IncludePartialMessages bool
	// InputFile reads the prompt from a file instead of argv or stdin.
	InputFile string
	// InputFormat controls how prompts are read in print mode.
	InputFormat string
	// JSONSchema provides structured output validation schema.
	JSONSchema string
	// MaxBudgetUSD is accepted for compatibility.
	MaxBudgetUSD float64
	// MaxTokens is accepted for compatibility.
	MaxTokens int
	// McpConfigs are MCP server configs, inline JSON or file paths.
	McpConfigs []string
	// McpDebug enables MCP config diagnostics on stderr.
	McpDebug bool
	// Model overrides the default model selection.
	Model string
	// NoChrome disables browser integration.
	NoChrome bool
	// NoSessionPersistence disables writing session records to disk.
	NoSessionPersistence bool
	// NoTui forces print mode even on a TTY.
	NoTui bool
	// OutputFormat controls print mode output encoding.
	OutputFormat string
	// PermissionMode configures tool approval behavior.
	PermissionMode string
	// PluginDir is reserved for future plugin loading.
	PluginDir []string
	// Print enables non-interactive mode.
	Print bool
	// ReplayUserMessages is accepted for compatibility.
	ReplayUserMessages bool
	// Resume resumes a specific session id.
	Resume string
	// SandboxRoot is accepted for compatibility.
	SandboxRoot string
	// Scenario is the scenario file or directory path.
	Scenario string
	// SessionID sets a fixed session id.
	SessionID string
	// SettingSources limits which settings tiers load (user,project,local).
	SettingSources []string
	// Settings are repeatable settings overlays, inline JSON or file paths.
	Settings []string
	// StrictMcpConfig ignores settings mcpServers in favor of --mcp-config.
	StrictMcpConfig bool
	// SystemPrompt is accepted for compatibility.
	SystemPrompt string
	// Tools defines the available tool set.
	Tools string
	// Tui forces the interactive TUI.
	Tui bool
	// Verbose toggles verbose output.
	Verbose bool
	// Version prints the version number.
	Version bool
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "claude [prompt]",
		Short: "Claudeless - a scriptable Claude CLI simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Println(versionString(simulatedVersion(opts)))
				return nil
			}
			return runRoot(cmd, opts, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Args = cobra.ArbitraryArgs

	applyFlags(rootCmd.Flags(), opts)

	for _, name := range []string{"doctor", "install", "update", "mcp", "plugin", "setup-token"} {
		rootCmd.AddCommand(stubCommand(name))
	}

	if err := rootCmd.Execute(); err != nil {
		var coded *exitCodeError
		if errors.As(err, &coded) {
			if coded.message != "" {
				fmt.Fprintln(os.Stderr, coded.message)
			}
			os.Exit(coded.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// exitCodeError carries a specific process exit code out of runRoot.
type exitCodeError struct {
	code    int
	message string
}

func (e *exitCodeError) Error() string { return e.message }

// applyFlags defines all CLI flags with Claude Code-compatible names.
func applyFlags(flags *pflag.FlagSet, opts *options) {
	flags.SetNormalizeFunc(normalizeFlagName)

	flags.StringSliceVar(&opts.AddDirs, "add-dir", nil, "Additional directories to allow tool access to")
	flags.StringVar(&opts.Agent, "agent", "", "Agent for the current session")
	flags.StringVar(&opts.AgentsJSON, "agents", "", "JSON object defining custom agents")
	flags.BoolVar(&opts.AllowDangerouslySkipPermissions, "allow-dangerously-skip-permissions", false, "Allow bypassing permissions")
	flags.BoolVar(&opts.AllowRealBash, "allow-real-bash", false, "Allow real shell execution (ignored; Bash stays mocked)")
	flags.StringVar(&opts.AllowedTools, "allowedTools", "", "Allowed tools list")
	flags.StringVar(&opts.AppendSystemPrompt, "append-system-prompt", "", "Append a system prompt")
	flags.StringSliceVar(&opts.Betas, "betas", nil, "Beta headers")
	flags.StringVar(&opts.Capture, "capture", "", "Write a copy of stdout to a file")
	flags.BoolVar(&opts.Chrome, "chrome", false, "Enable browser integration")
	flags.StringVar(&opts.ClaudeVersion, "claude-version", "", "Claude CLI version to simulate")
	flags.BoolVarP(&opts.Continue, "continue", "c", false, "Continue the most recent conversation")
	flags.StringVar(&opts.Cwd, "cwd", "", "Working directory reported in records")
	flags.BoolVar(&opts.DangerouslySkipPermissions, "dangerously-skip-permissions", false, "Bypass permissions")
	flags.StringVarP(&opts.Debug, "debug", "d", "", "Enable debug logging")
	flags.Lookup("debug").NoOptDefVal = "all"
	flags.StringVar(&opts.DebugFile, "debug-file", "", "Write debug logs to a file")
	flags.BoolVar(&opts.DisableSlashCommands, "disable-slash-commands", false, "Disable slash commands")
	flags.StringVar(&opts.DisallowedTools, "disallowedTools", "", "Disallowed tools list")
	flags.StringVar(&opts.Failure, "failure", "", "Inject a failure mode (network|timeout|auth|rate-limit|credits|partial|malformed)")
	flags.StringVar(&opts.FallbackModel, "fallback-model", "", "Fallback model")
	flags.StringSliceVar(&opts.FileSpecs, "file", nil, "File resources to download at startup")
	flags.BoolVar(&opts.ForkSession, "fork-session", false, "Fork session on resume")
	flags.BoolVar(&opts.IDE, "ide", false, "Connect to an IDE on startup")
	flags.BoolVar(&opts.IncludePartialMessages, "include-partial-messages", false, "Include partial message chunks")
	flags.StringVar(&opts.InputFile, "input-file", "", "Read the prompt from a file")
	flags.StringVar(&opts.InputFormat, "input-format", "text", "Input format (text|stream-json)")
	flags.StringVar(&opts.JSONSchema, "json-schema", "", "JSON schema for structured output")
	flags.Float64Var(&opts.MaxBudgetUSD, "max-budget-usd", 0, "Maximum budget in USD")
	flags.IntVar(&opts.MaxTokens, "max-tokens", 0, "Maximum response tokens")
	flags.StringArrayVar(&opts.McpConfigs, "mcp-config", nil, "MCP server config, JSON or file path")
	flags.BoolVar(&opts.McpDebug, "mcp-debug", false, "MCP config diagnostics")
	flags.StringVar(&opts.Model, "model", "", "Model for the current session")
	flags.BoolVar(&opts.NoChrome, "no-chrome", false, "Disable browser integration")
	flags.BoolVar(&opts.NoSessionPersistence, "no-session-persistence", false, "Disable session persistence")
	flags.BoolVar(&opts.NoTui, "no-tui", false, "Force print mode")
	flags.StringVar(&opts.OutputFormat, "output-format", "text", "Output format (text|json|stream-json)")
	flags.StringVar(&opts.PermissionMode, "permission-mode", "default", "Permission mode")
	flags.StringSliceVar(&opts.PluginDir, "plugin-dir", nil, "Load plugins from directories")
	flags.BoolVarP(&opts.Print, "print", "p", false, "Print response and exit")
	flags.BoolVar(&opts.ReplayUserMessages, "replay-user-messages", false, "Replay user messages from stdin")
	flags.StringVarP(&opts.Resume, "resume", "r", "", "Resume a conversation by session ID")
	flags.StringVar(&opts.SandboxRoot, "sandbox-root", "", "Sandbox root directory")
	flags.StringVar(&opts.Scenario, "scenario", "", "Scenario file or directory")
	flags.StringVar(&opts.SessionID, "session-id", "", "Use a specific session ID")
	flags.StringSliceVar(&opts.SettingSources, "setting-sources", nil, "Setting sources (user,project,local)")
	flags.StringArrayVar(&opts.Settings, "settings", nil, "Settings file path or JSON (repeatable)")
	flags.BoolVar(&opts.StrictMcpConfig, "strict-mcp-config", false, "Only use MCP servers from --mcp-config")
	flags.StringVar(&opts.SystemPrompt, "system-prompt", "", "System prompt")
	flags.StringVar(&opts.Tools, "tools", "default", "Available tools list")
	flags.BoolVar(&opts.Tui, "tui", false, "Force the interactive TUI")
	flags.BoolVar(&opts.Verbose, "verbose", false, "Verbose output")
	flags.BoolVarP(&opts.Version, "version", "v", false, "Output the version number")
}

// normalizeFlagName maps dashed flag aliases to camel-case names so both
// spellings address the same flag.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "allowed-tools":
		return "allowedTools"
	case "disallowed-tools":
		return "disallowedTools"
	default:
		return pflag.NormalizedName(name)
	}
}

// stubCommand provides a placeholder for real CLI subcommands the simulator
// accepts but does not implement.
func stubCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: "Accepted for compatibility",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(os.Stderr, "%s is not simulated by claudeless\n", name)
			return nil
		},
	}
}

// simulatedVersion returns the Claude version being simulated, from the
// flag or the environment, or empty when running under its own name.
func simulatedVersion(opts *options) string {
	if opts.ClaudeVersion != "" {
		return opts.ClaudeVersion
	}
	return os.Getenv(envClaudeVersion)
}

// versionString formats the --version output.
func versionString(simulated string) string {
	if simulated != "" {
		return fmt.Sprintf("%s (Claude Code)", simulated)
	}
	return fmt.Sprintf("claudeless %s", claudelessVersion)
}

// newLogger builds the debug logger from --debug and --debug-file. Nothing
// is ever logged to stdout.
func newLogger(opts *options) zerolog.Logger {
	level := zerolog.WarnLevel
	if opts.Debug != "" {
		level = zerolog.DebugLevel
	}
	var sink = os.Stderr
	if opts.DebugFile != "" {
		if f, err := os.OpenFile(opts.DebugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			sink = f
		}
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: sink}).Level(level).With().Timestamp().Logger()
}

// app bundles everything one invocation needs, assembled once in buildApp
// and shared by print mode and the TUI.
type app struct {
	opts     *options
	log      zerolog.Logger
	cfg      *scenario.Config
	engine   *scenario.Engine
	ctx      *runtime.Context
	orch     *runtime.Orchestrator
	writer   *state.Writer
	hooks    *hooks.Executor
	timeouts scenario.ResolvedTimeouts
	mcp      *config.McpConfig
	failure  *scenario.FailureSpec
	bypass   permission.Bypass
}

// buildApp loads the scenario, settings, and MCP configs and wires the
// orchestrator. Load-time errors return before any record is written.
func buildApp(opts *options) (*app, error) {
	log := newLogger(opts)

	bypass := permission.Bypass{
		AllowBypass: opts.AllowDangerouslySkipPermissions,
		Requested:   opts.DangerouslySkipPermissions,
	}
	if bypass.NotAllowed() {
		return nil, &exitCodeError{code: 1, message: permission.BypassNotAllowedMessage}
	}

	scenarioPath := opts.Scenario
	if scenarioPath == "" {
		scenarioPath = os.Getenv(envScenario)
	}
	var (
		cfg    *scenario.Config
		engine *scenario.Engine
	)
	if scenarioPath != "" {
		compiled, err := scenario.Load(scenarioPath)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
		cfg = compiled.Config
		engine = scenario.NewEngine(compiled)
	}

	failureMode := opts.Failure
	if failureMode == "" {
		failureMode = os.Getenv(envFailure)
	}
	var failureSpec *scenario.FailureSpec
	if failureMode != "" {
		spec, err := failure.FromFlag(failureMode)
		if err != nil {
			return nil, err
		}
		failureSpec = spec
	}

	mode, err := permission.ParseMode(opts.PermissionMode)
	if err != nil {
		return nil, err
	}
	if bypass.Active() {
		mode = permission.ModeBypassPermissions
	}

	workingDir := opts.Cwd
	if workingDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workingDir = cwd
		}
	}

	settings := loadSettings(opts, workingDir, log)
	rc := runtime.Build(cfg, runtime.Params{
		Model:            opts.Model,
		SessionID:        sessionIDParam(opts),
		WorkingDirectory: workingDir,
		ClaudeVersion:    simulatedVersion(opts),
		PermissionMode:   mode,
	}, settings)

	mcp, err := loadMcpConfig(opts, settings, log)
	if err != nil {
		return nil, err
	}

	var timeoutOverrides *scenario.TimeoutOverrides
	if cfg != nil {
		timeoutOverrides = cfg.Timeouts
	}
	timeouts := scenario.ResolveTimeouts(timeoutOverrides)

	writer, err := buildStateWriter(opts, rc)
	if err != nil {
		return nil, err
	}

	hookExec, err := hooks.LoadFromSettings(settings.Hooks, timeouts.HookTimeoutMS, log)
	if err != nil {
		return nil, fmt.Errorf("load hooks: %w", err)
	}
	if hookExec != nil {
		transcript := ""
		if writer != nil {
			transcript = writer.SessionPath()
		}
		hookExec.SetContext(rc.WorkingDirectory, transcript, string(rc.PermissionMode))
	}

	var overrides map[string]scenario.ToolConfig
	if cfg != nil && cfg.ToolExecution != nil {
		overrides = cfg.ToolExecution.Tools
	}
	var executionMode scenario.ToolExecutionMode
	if cfg != nil && cfg.ToolExecution != nil {
		executionMode = cfg.ToolExecution.Mode
	}
	executor := tools.NewPermissionCheckingExecutor(
		tools.NewExecutor(executionMode),
		rc.Checker(bypass, overrides),
	)

	orch := runtime.NewOrchestrator(rc, engine, executor, writer, hookExec, timeouts, log)
	return &app{
		opts:     opts,
		log:      log,
		cfg:      cfg,
		engine:   engine,
		ctx:      rc,
		orch:     orch,
		writer:   writer,
		hooks:    hookExec,
		timeouts: timeouts,
		mcp:      mcp,
		failure:  failureSpec,
		bypass:   bypass,
	}, nil
}

// sessionIDParam picks the CLI session id: --session-id, or the resumed id.
func sessionIDParam(opts *options) string {
	if opts.SessionID != "" {
		return opts.SessionID
	}
	return opts.Resume
}

// loadSettings merges the settings tiers, honoring --setting-sources and
// repeatable --settings overlays.
func loadSettings(opts *options, workingDir string, log zerolog.Logger) *config.ClaudeSettings {
	stateRoot := os.Getenv(state.EnvStateDir)
	if stateRoot == "" {
		stateRoot = os.Getenv(state.EnvClaudeLocalStateDir)
	}
	settingsHome := config.SettingsHome(stateRoot)

	paths := config.ResolvePaths(settingsHome, workingDir)
	if settingsHome == "" {
		paths = config.ProjectOnlyPaths(workingDir)
	}
	if len(opts.SettingSources) > 0 {
		paths = filterSources(paths, opts.SettingSources)
	}
	return config.NewLoader(paths, log).LoadWithOverrides(opts.Settings)
}

// filterSources blanks out settings tiers not named in --setting-sources.
func filterSources(paths config.SettingsPaths, sources []string) config.SettingsPaths {
	keep := map[string]bool{}
	for _, source := range sources {
		keep[strings.TrimSpace(strings.ToLower(source))] = true
	}
	if !keep["user"] {
		paths.Global = ""
	}
	if !keep["project"] {
		paths.Project = ""
	}
	if !keep["local"] {
		paths.Local = ""
	}
	return paths
}

// loadMcpConfig merges --mcp-config values with settings mcpServers.
// --strict-mcp-config drops the settings servers.
func loadMcpConfig(opts *options, settings *config.ClaudeSettings, log zerolog.Logger) (*config.McpConfig, error) {
	configs := make([]*config.McpConfig, 0, len(opts.McpConfigs)+1)
	if !opts.StrictMcpConfig && len(settings.McpServers) > 0 {
		configs = append(configs, &config.McpConfig{McpServers: settings.McpServers})
	}
	for _, raw := range opts.McpConfigs {
		cfg, err := config.LoadMcpConfig(raw)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	merged := config.MergeMcpConfigs(configs)
	if opts.McpDebug && merged.HasServers() {
		log.Info().Strs("servers", merged.ServerNames()).Msg("mcp servers configured")
	}
	return merged, nil
}

// buildStateWriter opens the session log writer unless persistence is off.
// Resume and continue require an existing sessions-index entry.
func buildStateWriter(opts *options, rc *runtime.Context) (*state.Writer, error) {
	if opts.NoSessionPersistence {
		return nil, nil
	}
	id := rc.SessionID.String()
	launch := rc.LaunchTimestamp
	if opts.Resume != "" || opts.Continue {
		writer, err := state.NewWriterResumed(id, rc.ProjectPath, launch, rc.Model, rc.ClaudeVersion, rc.WorkingDirectory)
		if err != nil {
			return nil, fmt.Errorf("resume session %s: %w", id, err)
		}
		return writer, nil
	}
	return state.NewWriter(id, rc.ProjectPath, launch, rc.Model, rc.ClaudeVersion, rc.WorkingDirectory)
}

// runRoot dispatches between print mode and the interactive TUI.
func runRoot(cmd *cobra.Command, opts *options, args []string) error {
	application, err := buildApp(opts)
	if err != nil {
		return err
	}

	if usePrintMode(opts) {
		code, err := runPrintMode(cmd, application, args)
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitCodeError{code: code}
		}
		return nil
	}
	return runInteractiveTUI(application, args)
}

// usePrintMode decides the mode: explicit flags win, then TTY detection.
func usePrintMode(opts *options) bool {
	if opts.Print || opts.NoTui {
		return true
	}
	if opts.Tui {
		return false
	}
	return !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd()))
}

// shortenPath abbreviates a home-relative path for display.
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if rel, err := filepath.Rel(home, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join("~", rel)
	}
	return path
}
