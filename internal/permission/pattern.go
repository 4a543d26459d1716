package permission

import (
	"strings"

	"github.com/gobwas/glob"
)

// ToolPattern is one compiled entry from permissions.allow or
// permissions.deny. Claude Code patterns look like:
//
//	"Read"            all Read tool calls
//	"Bash(npm test)"  Bash with that exact command
//	"Bash(npm:*)"     commands starting with "npm"
//	"Write(*.md)"     glob over the salient input
type ToolPattern struct {
	// Tool is the tool name; compared case-insensitively.
	Tool string
	// Argument constrains the tool input; nil matches any input.
	Argument ArgPattern
}

// ArgPattern matches a tool's salient input string.
type ArgPattern interface {
	MatchArg(input string) bool
}

// ExactArg requires string equality.
type ExactArg struct{ Text string }

// MatchArg implements ArgPattern.
func (p ExactArg) MatchArg(input string) bool { return input == p.Text }

// PrefixArg matches Claude's ":*" suffix syntax.
type PrefixArg struct{ Prefix string }

// MatchArg implements ArgPattern.
func (p PrefixArg) MatchArg(input string) bool { return strings.HasPrefix(input, p.Prefix) }

// GlobArg matches shell-style wildcards.
type GlobArg struct{ Glob glob.Glob }

// MatchArg implements ArgPattern.
func (p GlobArg) MatchArg(input string) bool { return p.Glob.Match(input) }

// ParseToolPattern parses a single pattern string. Unparseable patterns
// return false so a bad settings entry never blocks the whole list.
func ParseToolPattern(s string) (ToolPattern, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ToolPattern{}, false
	}

	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return ToolPattern{Tool: s}, true
	}

	tool := s[:open]
	arg := s[open+1 : len(s)-1]

	if prefix, ok := strings.CutSuffix(arg, ":*"); ok {
		return ToolPattern{Tool: tool, Argument: PrefixArg{Prefix: prefix}}, true
	}
	if strings.ContainsAny(arg, "*?[") {
		g, err := glob.Compile(arg)
		if err != nil {
			return ToolPattern{Tool: tool}, true
		}
		return ToolPattern{Tool: tool, Argument: GlobArg{Glob: g}}, true
	}
	return ToolPattern{Tool: tool, Argument: ExactArg{Text: arg}}, true
}

// Matches reports whether this pattern claims a tool call. input is the
// tool's salient input string; an empty input never satisfies an argument
// pattern.
func (p ToolPattern) Matches(tool, input string) bool {
	if !strings.EqualFold(p.Tool, tool) {
		return false
	}
	if p.Argument == nil {
		return true
	}
	if input == "" {
		return false
	}
	return p.Argument.MatchArg(input)
}

// Patterns is the compiled allow/deny lists from settings.
type Patterns struct {
	Allow []ToolPattern
	Deny  []ToolPattern
}

// CompilePatterns parses settings allow and deny lists, skipping entries
// that fail to parse.
func CompilePatterns(allow, deny []string) Patterns {
	return Patterns{Allow: parseAll(allow), Deny: parseAll(deny)}
}

func parseAll(entries []string) []ToolPattern {
	var out []ToolPattern
	for _, entry := range entries {
		if p, ok := ParseToolPattern(entry); ok {
			out = append(out, p)
		}
	}
	return out
}

// IsAllowed reports whether any allow pattern claims the call.
func (p Patterns) IsAllowed(tool, input string) bool {
	return anyMatch(p.Allow, tool, input)
}

// IsDenied reports whether any deny pattern claims the call.
func (p Patterns) IsDenied(tool, input string) bool {
	return anyMatch(p.Deny, tool, input)
}

// Empty reports whether no patterns are configured.
func (p Patterns) Empty() bool { return len(p.Allow) == 0 && len(p.Deny) == 0 }

func anyMatch(patterns []ToolPattern, tool, input string) bool {
	for _, p := range patterns {
		if p.Matches(tool, input) {
			return true
		}
	}
	return false
}
