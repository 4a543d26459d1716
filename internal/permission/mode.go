// Package permission implements tool permission decisions: modes, bypass
// flags, settings patterns, and the combined checker.
package permission

import (
	"fmt"
	"strings"
)

// Mode controls how tool execution permissions are handled, matching the
// real CLI's --permission-mode flag.
type Mode string

const (
	// ModeDefault prompts interactively for each tool use.
	ModeDefault Mode = "default"
	// ModeAcceptEdits auto-allows file edit operations.
	ModeAcceptEdits Mode = "accept-edits"
	// ModeBypassPermissions skips all permission checks.
	ModeBypassPermissions Mode = "bypass-permissions"
	// ModeDelegate delegates decisions to hooks.
	ModeDelegate Mode = "delegate"
	// ModeDontAsk denies operations that would require a prompt.
	ModeDontAsk Mode = "dont-ask"
	// ModePlan disallows execution entirely.
	ModePlan Mode = "plan"
)

// ParseMode accepts both the kebab-case flag spelling and the camelCase
// settings spelling, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return ModeDefault, nil
	case "accept-edits", "acceptedits":
		return ModeAcceptEdits, nil
	case "bypass-permissions", "bypasspermissions":
		return ModeBypassPermissions, nil
	case "delegate":
		return ModeDelegate, nil
	case "dont-ask", "dontask":
		return ModeDontAsk, nil
	case "plan":
		return ModePlan, nil
	default:
		return ModeDefault, fmt.Errorf("invalid permission mode %q", s)
	}
}

// AllowsAll reports whether the mode allows everything without prompting.
func (m Mode) AllowsAll() bool { return m == ModeBypassPermissions }

// DeniesAll reports whether the mode denies by default.
func (m Mode) DeniesAll() bool { return m == ModeDontAsk || m == ModePlan }

// CycleNext returns the next mode for the TUI Shift-Tab cycler. Bypass mode
// joins the cycle only when allowBypass is set.
func (m Mode) CycleNext(allowBypass bool) Mode {
	switch m {
	case ModeDefault:
		return ModePlan
	case ModePlan:
		return ModeAcceptEdits
	case ModeAcceptEdits:
		if allowBypass {
			return ModeBypassPermissions
		}
		return ModeDefault
	default:
		return ModeDefault
	}
}

// DisplayName returns the label shown in the TUI status bar.
func (m Mode) DisplayName() string {
	switch m {
	case ModePlan:
		return "plan"
	case ModeAcceptEdits:
		return "accept edits"
	case ModeBypassPermissions:
		return "bypass permissions"
	case ModeDelegate:
		return "delegate"
	case ModeDontAsk:
		return "dont ask"
	default:
		return "default"
	}
}
