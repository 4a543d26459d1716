package scenario

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern is a compiled prompt matcher. The concrete types form a closed
// set mirroring PatternKind.
type Pattern interface {
	// Match reports whether the prompt satisfies the pattern.
	Match(prompt string) bool
}

// ExactPattern requires full string equality.
type ExactPattern struct {
	Text string
}

// Match implements Pattern.
func (p ExactPattern) Match(prompt string) bool { return prompt == p.Text }

// RegexPattern matches with a compiled regular expression.
type RegexPattern struct {
	Regex *regexp.Regexp
}

// Match implements Pattern.
func (p RegexPattern) Match(prompt string) bool { return p.Regex.MatchString(prompt) }

// GlobPattern matches with shell-style wildcards over the whole prompt.
type GlobPattern struct {
	Glob glob.Glob
}

// Match implements Pattern.
func (p GlobPattern) Match(prompt string) bool { return p.Glob.Match(prompt) }

// ContainsPattern requires a substring.
type ContainsPattern struct {
	Text string
}

// Match implements Pattern.
func (p ContainsPattern) Match(prompt string) bool { return strings.Contains(prompt, p.Text) }

// AnyPattern matches every prompt.
type AnyPattern struct{}

// Match implements Pattern.
func (AnyPattern) Match(string) bool { return true }

// CompilePattern builds a Pattern from its declarative spec. Regex patterns
// are unanchored like the vendor's matcher; glob patterns must cover the
// whole prompt.
func CompilePattern(spec PatternSpec) (Pattern, error) {
	switch spec.Type {
	case PatternExact:
		return ExactPattern{Text: spec.Text}, nil
	case PatternRegex:
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", spec.Pattern, err)
		}
		return RegexPattern{Regex: re}, nil
	case PatternGlob:
		g, err := glob.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", spec.Pattern, err)
		}
		return GlobPattern{Glob: g}, nil
	case PatternContains:
		return ContainsPattern{Text: spec.Text}, nil
	case PatternAny:
		return AnyPattern{}, nil
	default:
		return nil, fmt.Errorf("unknown pattern type %q", spec.Type)
	}
}
