package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/claudeless/claudeless/internal/config"
	"github.com/claudeless/claudeless/internal/permission"
	"github.com/claudeless/claudeless/internal/state"
)

// TestVersionString verifies branding switches with the simulated version.
func TestVersionString(testingHandle *testing.T) {
	if got := versionString(""); got != "claudeless 0.1.0" {
		testingHandle.Fatalf("unexpected plain version: %q", got)
	}
	if got := versionString("2.0.27"); got != "2.0.27 (Claude Code)" {
		testingHandle.Fatalf("unexpected simulated version: %q", got)
	}
}

// TestSimulatedVersionEnvFallback verifies the environment variable is used
// when the flag is absent, and the flag wins when both are set.
func TestSimulatedVersionEnvFallback(testingHandle *testing.T) {
	testingHandle.Setenv(envClaudeVersion, "1.0.0")

	if got := simulatedVersion(&options{}); got != "1.0.0" {
		testingHandle.Fatalf("env fallback not applied: %q", got)
	}
	if got := simulatedVersion(&options{ClaudeVersion: "2.0.0"}); got != "2.0.0" {
		testingHandle.Fatalf("flag should win over env: %q", got)
	}
}

// TestFlagNameAliases verifies the dashed spellings address the camel-case
// flags.
func TestFlagNameAliases(testingHandle *testing.T) {
	opts := &options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	applyFlags(flags, opts)

	err := flags.Parse([]string{"--allowed-tools", "Bash(ls:*)", "--disallowed-tools", "WebFetch"})
	if err != nil {
		testingHandle.Fatalf("parse failed: %v", err)
	}
	if opts.AllowedTools != "Bash(ls:*)" {
		testingHandle.Fatalf("allowed-tools alias did not bind: %q", opts.AllowedTools)
	}
	if opts.DisallowedTools != "WebFetch" {
		testingHandle.Fatalf("disallowed-tools alias did not bind: %q", opts.DisallowedTools)
	}
}

// TestDebugFlagNoValue verifies bare --debug enables all categories.
func TestDebugFlagNoValue(testingHandle *testing.T) {
	opts := &options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	applyFlags(flags, opts)

	if err := flags.Parse([]string{"--debug"}); err != nil {
		testingHandle.Fatalf("parse failed: %v", err)
	}
	if opts.Debug != "all" {
		testingHandle.Fatalf("expected bare --debug to mean all, got %q", opts.Debug)
	}
}

// TestUsePrintModeFlags verifies the explicit mode flags win over TTY
// detection.
func TestUsePrintModeFlags(testingHandle *testing.T) {
	if !usePrintMode(&options{Print: true}) {
		testingHandle.Fatalf("--print should force print mode")
	}
	if !usePrintMode(&options{NoTui: true}) {
		testingHandle.Fatalf("--no-tui should force print mode")
	}
	if usePrintMode(&options{Tui: true}) {
		testingHandle.Fatalf("--tui should force interactive mode")
	}
}

// TestSessionIDParam verifies --session-id wins over --resume.
func TestSessionIDParam(testingHandle *testing.T) {
	if got := sessionIDParam(&options{SessionID: "fixed", Resume: "old"}); got != "fixed" {
		testingHandle.Fatalf("session-id should win: %q", got)
	}
	if got := sessionIDParam(&options{Resume: "old"}); got != "old" {
		testingHandle.Fatalf("resume id not used: %q", got)
	}
	if got := sessionIDParam(&options{}); got != "" {
		testingHandle.Fatalf("expected empty session param, got %q", got)
	}
}

// TestFilterSources verifies unnamed settings tiers are blanked out.
func TestFilterSources(testingHandle *testing.T) {
	paths := config.SettingsPaths{Global: "/g", Project: "/p", Local: "/l"}

	filtered := filterSources(paths, []string{"project"})
	if filtered.Global != "" || filtered.Local != "" {
		testingHandle.Fatalf("expected only project tier to survive: %+v", filtered)
	}
	if filtered.Project != "/p" {
		testingHandle.Fatalf("project tier should be kept: %+v", filtered)
	}

	filtered = filterSources(paths, []string{"user", "local"})
	if filtered.Project != "" || filtered.Global != "/g" || filtered.Local != "/l" {
		testingHandle.Fatalf("unexpected tiers: %+v", filtered)
	}
}

// TestShortenPath verifies home-relative abbreviation.
func TestShortenPath(testingHandle *testing.T) {
	home := testingHandle.TempDir()
	testingHandle.Setenv("HOME", home)

	inside := filepath.Join(home, "projects", "demo")
	if got := shortenPath(inside); got != filepath.Join("~", "projects", "demo") {
		testingHandle.Fatalf("expected home abbreviation, got %q", got)
	}
	if got := shortenPath("/etc/hosts"); got != "/etc/hosts" {
		testingHandle.Fatalf("paths outside home must be untouched: %q", got)
	}
}

// TestBuildAppBypassNotAllowed verifies the refusal exits with code 1 and
// the canonical message.
func TestBuildAppBypassNotAllowed(testingHandle *testing.T) {
	_, err := buildApp(&options{
		PermissionMode:             "default",
		DangerouslySkipPermissions: true,
	})
	if err == nil {
		testingHandle.Fatalf("expected bypass refusal")
	}
	coded, ok := err.(*exitCodeError)
	if !ok {
		testingHandle.Fatalf("expected exitCodeError, got %T", err)
	}
	if coded.code != 1 {
		testingHandle.Fatalf("expected exit code 1, got %d", coded.code)
	}
	if !strings.Contains(coded.message, permission.BypassNotAllowedMessage) {
		testingHandle.Fatalf("unexpected message: %q", coded.message)
	}
}

// TestBuildAppDefaults verifies a flag-free invocation wires a full app.
func TestBuildAppDefaults(testingHandle *testing.T) {
	testingHandle.Setenv(state.EnvStateDir, testingHandle.TempDir())

	application, err := buildApp(&options{PermissionMode: "default", Cwd: testingHandle.TempDir()})
	if err != nil {
		testingHandle.Fatalf("buildApp failed: %v", err)
	}
	if application.engine != nil {
		testingHandle.Fatalf("no scenario should mean no engine")
	}
	if application.failure != nil {
		testingHandle.Fatalf("no failure flag should mean no failure spec")
	}
	if application.writer == nil {
		testingHandle.Fatalf("session persistence should be on by default")
	}
	if application.orch == nil {
		testingHandle.Fatalf("orchestrator not wired")
	}
}

// TestBuildAppNoPersistence verifies --no-session-persistence skips the
// writer.
func TestBuildAppNoPersistence(testingHandle *testing.T) {
	testingHandle.Setenv(state.EnvStateDir, testingHandle.TempDir())

	application, err := buildApp(&options{
		PermissionMode:       "default",
		NoSessionPersistence: true,
		Cwd:                  testingHandle.TempDir(),
	})
	if err != nil {
		testingHandle.Fatalf("buildApp failed: %v", err)
	}
	if application.writer != nil {
		testingHandle.Fatalf("writer should be nil with persistence off")
	}
}

// TestBuildAppBypassActive verifies an allowed bypass switches the
// permission mode.
func TestBuildAppBypassActive(testingHandle *testing.T) {
	testingHandle.Setenv(state.EnvStateDir, testingHandle.TempDir())

	application, err := buildApp(&options{
		PermissionMode:                  "default",
		DangerouslySkipPermissions:      true,
		AllowDangerouslySkipPermissions: true,
		Cwd:                             testingHandle.TempDir(),
	})
	if err != nil {
		testingHandle.Fatalf("buildApp failed: %v", err)
	}
	if application.ctx.PermissionMode != permission.ModeBypassPermissions {
		testingHandle.Fatalf("expected bypass mode, got %v", application.ctx.PermissionMode)
	}
}
