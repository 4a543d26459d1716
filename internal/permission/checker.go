package permission

import (
	"fmt"
	"strings"

	"github.com/claudeless/claudeless/internal/scenario"
)

// ResultKind tags a permission decision.
type ResultKind int

const (
	// Allowed grants the call.
	Allowed ResultKind = iota
	// Denied refuses the call with a reason.
	Denied
	// NeedsPrompt defers to an interactive dialog.
	NeedsPrompt
)

// Result is the outcome of one permission check.
type Result struct {
	// Kind tags the decision.
	Kind ResultKind
	// Reason explains a denial.
	Reason string
	// Tool and Action identify the pending call for NeedsPrompt.
	Tool   string
	Action string
}

// Checker decides whether tool calls may proceed. It is frozen at
// construction; the same inputs always produce the same decision.
//
// Priority order, highest first: bypass flags, scenario per-tool overrides,
// settings deny patterns, settings allow patterns, permission mode.
type Checker struct {
	mode      Mode
	bypass    Bypass
	patterns  Patterns
	overrides map[string]scenario.ToolConfig
}

// NewChecker builds a checker from its frozen inputs. overrides may be nil.
func NewChecker(mode Mode, bypass Bypass, patterns Patterns, overrides map[string]scenario.ToolConfig) *Checker {
	return &Checker{mode: mode, bypass: bypass, patterns: patterns, overrides: overrides}
}

// Mode returns the checker's permission mode.
func (c *Checker) Mode() Mode { return c.mode }

// Bypassed reports whether every check is skipped.
func (c *Checker) Bypassed() bool {
	return c.bypass.Active() || c.mode == ModeBypassPermissions
}

// Check decides a tool action without input-level pattern matching.
func (c *Checker) Check(tool, action string) Result {
	return c.CheckWithInput(tool, action, "")
}

// CheckWithInput decides a tool action; input is the tool's salient input
// string used by settings argument patterns.
func (c *Checker) CheckWithInput(tool, action, input string) Result {
	if c.bypass.Active() {
		return Result{Kind: Allowed}
	}

	if cfg, ok := c.overrides[tool]; ok {
		if cfg.AutoApprove {
			return Result{Kind: Allowed}
		}
		if cfg.Error != "" {
			return Result{Kind: Denied, Reason: cfg.Error}
		}
	}

	if c.patterns.IsDenied(tool, input) {
		return Result{Kind: Denied, Reason: fmt.Sprintf("Tool %s is denied by settings", tool)}
	}
	if c.patterns.IsAllowed(tool, input) {
		return Result{Kind: Allowed}
	}

	return c.checkByMode(tool, action)
}

func (c *Checker) checkByMode(tool, action string) Result {
	switch c.mode {
	case ModeBypassPermissions:
		return Result{Kind: Allowed}
	case ModeAcceptEdits:
		if isEditAction(action) {
			return Result{Kind: Allowed}
		}
		return Result{Kind: NeedsPrompt, Tool: tool, Action: action}
	case ModeDontAsk:
		return Result{Kind: Denied, Reason: "Permission denied in DontAsk mode"}
	case ModePlan:
		return Result{Kind: Denied, Reason: "Execution not allowed in Plan mode"}
	default:
		return Result{Kind: NeedsPrompt, Tool: tool, Action: action}
	}
}

func isEditAction(action string) bool {
	switch strings.ToLower(action) {
	case "edit", "write", "create", "delete", "modify":
		return true
	}
	return false
}
