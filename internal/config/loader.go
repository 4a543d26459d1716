package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// SettingsPaths are the settings files a session reads, in precedence order.
type SettingsPaths struct {
	// Global is the user settings file inside the state directory.
	Global string
	// Project is .claude/settings.json under the working directory.
	Project string
	// Local is .claude/settings.local.json under the working directory.
	Local string
}

// Environment overrides for the settings home. The dedicated variables win
// over the state directory so tests can isolate settings from session state.
const (
	EnvConfigDir       = "CLAUDELESS_CONFIG_DIR"
	EnvClaudeConfigDir = "CLAUDE_CONFIG_DIR"
)

// SettingsHome returns the directory holding the global settings file:
// the config-dir env chain first, then the given state root, else empty.
func SettingsHome(stateRoot string) string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	if dir := os.Getenv(EnvClaudeConfigDir); dir != "" {
		return dir
	}
	return stateRoot
}

// ResolvePaths returns the settings paths for a state dir and working dir.
func ResolvePaths(stateDir, workingDir string) SettingsPaths {
	return SettingsPaths{
		Global:  filepath.Join(stateDir, "settings.json"),
		Project: filepath.Join(workingDir, ".claude", "settings.json"),
		Local:   filepath.Join(workingDir, ".claude", "settings.local.json"),
	}
}

// ProjectOnlyPaths returns paths without a global file, for isolated loads.
func ProjectOnlyPaths(workingDir string) SettingsPaths {
	return SettingsPaths{
		Project: filepath.Join(workingDir, ".claude", "settings.json"),
		Local:   filepath.Join(workingDir, ".claude", "settings.local.json"),
	}
}

// Loader merges settings files with correct precedence.
type Loader struct {
	paths SettingsPaths
	log   zerolog.Logger
}

// NewLoader creates a loader over the given paths.
func NewLoader(paths SettingsPaths, log zerolog.Logger) *Loader {
	return &Loader{paths: paths, log: log}
}

// Paths returns the paths being consulted.
func (l *Loader) Paths() SettingsPaths {
	return l.paths
}

// Load merges global, project, and local settings. Later files override
// earlier ones. Missing files are skipped; unreadable files are logged and
// skipped so a broken settings file never aborts a session.
func (l *Loader) Load() *ClaudeSettings {
	merged := &ClaudeSettings{}
	for _, path := range []string{l.paths.Global, l.paths.Project, l.paths.Local} {
		if path == "" {
			continue
		}
		settings, err := LoadSettings(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				l.log.Warn().Str("path", path).Err(err).Msg("failed to load settings")
			}
			continue
		}
		merged.Merge(settings)
	}
	return merged
}

// LoadWithOverrides merges the settings files, then applies each --settings
// value on top. A value starting with "{" is inline JSON; anything else is a
// file path.
func (l *Loader) LoadWithOverrides(overrides []string) *ClaudeSettings {
	merged := l.Load()
	for _, value := range overrides {
		override, err := loadOverride(value)
		if err != nil {
			l.log.Warn().Str("settings", value).Err(err).Msg("failed to load settings override")
			continue
		}
		merged.Merge(override)
	}
	return merged
}

func loadOverride(value string) (*ClaudeSettings, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return ParseSettings([]byte(trimmed))
	}
	return LoadSettings(trimmed)
}
