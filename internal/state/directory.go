// Package state emulates the Claude CLI's local state directory: session
// JSONL logs under projects/, todo files, saved plans, and the sessions
// index that the real CLI maintains per project.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment variables consulted when resolving the state root.
const (
	// EnvStateDir overrides the state root, highest priority.
	EnvStateDir = "CLAUDELESS_STATE_DIR"
	// EnvClaudeLocalStateDir is the standard Claude Code override.
	EnvClaudeLocalStateDir = "CLAUDE_LOCAL_STATE_DIR"
)

// Directory models the simulated ~/.claude layout.
type Directory struct {
	root        string
	initialized bool
}

// New creates a directory rooted at the given path without touching disk.
func New(root string) *Directory {
	return &Directory{root: root}
}

// Temp creates a directory under a fresh temporary root.
func Temp() (*Directory, error) {
	root, err := os.MkdirTemp("", "claudeless-state-")
	if err != nil {
		return nil, fmt.Errorf("create temp state dir: %w", err)
	}
	return New(root), nil
}

// Resolve picks the state root from the environment, falling back to a
// temporary directory. The fallback is deliberate: without an explicit
// override the simulator must never write into a real ~/.claude.
func Resolve() (*Directory, error) {
	if dir := os.Getenv(EnvStateDir); dir != "" {
		return New(dir), nil
	}
	if dir := os.Getenv(EnvClaudeLocalStateDir); dir != "" {
		return New(dir), nil
	}
	return Temp()
}

// Initialize creates the directory layout and the default settings file.
func (d *Directory) Initialize() error {
	for _, dir := range []string{d.TodosDir(), d.ProjectsDir(), d.PlansDir(), d.SessionsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir %s: %w", dir, err)
		}
	}
	if _, err := os.Stat(d.SettingsPath()); os.IsNotExist(err) {
		if err := os.WriteFile(d.SettingsPath(), []byte("{}"), 0o600); err != nil {
			return fmt.Errorf("write default settings: %w", err)
		}
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(d.root, 0o700); err != nil {
			return fmt.Errorf("restrict state dir permissions: %w", err)
		}
	}
	d.initialized = true
	return nil
}

// IsInitialized reports whether Initialize has run.
func (d *Directory) IsInitialized() bool { return d.initialized }

// Root returns the state root path.
func (d *Directory) Root() string { return d.root }

// TodosDir returns the todos directory path.
func (d *Directory) TodosDir() string { return filepath.Join(d.root, "todos") }

// ProjectsDir returns the projects directory path.
func (d *Directory) ProjectsDir() string { return filepath.Join(d.root, "projects") }

// PlansDir returns the plans directory path.
func (d *Directory) PlansDir() string { return filepath.Join(d.root, "plans") }

// SessionsDir returns the sessions directory path.
func (d *Directory) SessionsDir() string { return filepath.Join(d.root, "sessions") }

// SettingsPath returns the path of the root settings.json.
func (d *Directory) SettingsPath() string { return filepath.Join(d.root, "settings.json") }

// ProjectDir returns the per-project directory for a project path.
func (d *Directory) ProjectDir(projectPath string) string {
	return filepath.Join(d.ProjectsDir(), ProjectDirName(projectPath))
}

// NormalizeProjectPath converts a project path to the directory name the
// real CLI uses: slashes and dots become dashes, so /Users/u/my.app maps
// to -Users-u-my-app.
func NormalizeProjectPath(path string) string {
	return strings.NewReplacer("/", "-", ".", "-", "\\", "-").Replace(path)
}

// ProjectDirName resolves symlinks where possible before normalizing, so a
// project reached through different links lands in one directory.
func ProjectDirName(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	return NormalizeProjectPath(resolved)
}

// ValidateStructure checks the on-disk layout and returns human-readable
// warnings for anything missing or malformed. An empty slice means the
// layout matches expectations.
func (d *Directory) ValidateStructure() []string {
	var warnings []string

	for _, dir := range []string{"projects", "todos"} {
		if _, err := os.Stat(filepath.Join(d.root, dir)); err != nil {
			warnings = append(warnings, fmt.Sprintf("Missing directory: %s", dir))
		}
	}

	if raw, err := os.ReadFile(d.SettingsPath()); err != nil {
		warnings = append(warnings, "Missing settings.json")
	} else if !json.Valid(raw) {
		warnings = append(warnings, "Invalid settings.json")
	}

	entries, err := os.ReadDir(d.ProjectsDir())
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			indexPath := filepath.Join(d.ProjectsDir(), entry.Name(), "sessions-index.json")
			if raw, err := os.ReadFile(indexPath); err == nil && !json.Valid(raw) {
				warnings = append(warnings, fmt.Sprintf("Project %s has invalid sessions-index.json", entry.Name()))
			}
		}
	}

	return warnings
}

// Reset clears mutable state, keeping the directory layout. Session logs,
// todos and plans are removed and settings return to defaults.
func (d *Directory) Reset() error {
	for _, dir := range []string{d.TodosDir(), d.ProjectsDir(), d.PlansDir(), d.SessionsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				return fmt.Errorf("reset state dir: %w", err)
			}
		}
	}
	if err := os.WriteFile(d.SettingsPath(), []byte("{}"), 0o600); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}
