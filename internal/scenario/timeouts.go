package scenario

import (
	"os"
	"strconv"
)

// Default timeout values in milliseconds.
const (
	DefaultExitHintMS      int64 = 2000
	DefaultCompactDelayMS  int64 = 20
	DefaultHookTimeoutMS   int64 = 5000
	DefaultMcpTimeoutMS    int64 = 30000
	DefaultResponseDelayMS int64 = 20
)

// Environment variables that override timeout defaults.
const (
	EnvExitHintTimeoutMS = "CLAUDELESS_EXIT_HINT_TIMEOUT_MS"
	EnvCompactDelayMS    = "CLAUDELESS_COMPACT_DELAY_MS"
	EnvHookTimeoutMS     = "CLAUDELESS_HOOK_TIMEOUT_MS"
	EnvMcpTimeoutMS      = "CLAUDELESS_MCP_TIMEOUT_MS"
	EnvResponseDelayMS   = "CLAUDELESS_RESPONSE_DELAY_MS"
)

// ResolvedTimeouts holds all timing knobs with defaults applied.
type ResolvedTimeouts struct {
	ExitHintMS      int64
	CompactDelayMS  int64
	HookTimeoutMS   int64
	McpTimeoutMS    int64
	ResponseDelayMS int64
}

// ResolveTimeouts applies precedence scenario > environment > default.
func ResolveTimeouts(overrides *TimeoutOverrides) ResolvedTimeouts {
	var cfg TimeoutOverrides
	if overrides != nil {
		cfg = *overrides
	}
	return ResolvedTimeouts{
		ExitHintMS:      pickTimeout(cfg.ExitHintMS, EnvExitHintTimeoutMS, DefaultExitHintMS),
		CompactDelayMS:  pickTimeout(cfg.CompactDelayMS, EnvCompactDelayMS, DefaultCompactDelayMS),
		HookTimeoutMS:   pickTimeout(cfg.HookTimeoutMS, EnvHookTimeoutMS, DefaultHookTimeoutMS),
		McpTimeoutMS:    pickTimeout(cfg.McpTimeoutMS, EnvMcpTimeoutMS, DefaultMcpTimeoutMS),
		ResponseDelayMS: pickTimeout(cfg.ResponseDelayMS, EnvResponseDelayMS, DefaultResponseDelayMS),
	}
}

func pickTimeout(configured int64, envName string, fallback int64) int64 {
	if configured > 0 {
		return configured
	}
	if raw := os.Getenv(envName); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}
