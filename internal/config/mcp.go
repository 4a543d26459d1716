package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultMcpTimeoutMS is applied to servers with no explicit timeout.
const DefaultMcpTimeoutMS = 30000

// McpConfig is the root of an --mcp-config file.
type McpConfig struct {
	// McpServers maps server names to their definitions.
	McpServers map[string]McpServerConfig `json:"mcpServers"`
}

// ParseMcpConfig parses an MCP config document.
func ParseMcpConfig(raw []byte) (*McpConfig, error) {
	var cfg McpConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse mcp config: %w", err)
	}
	for name, server := range cfg.McpServers {
		if server.TimeoutMS <= 0 {
			server.TimeoutMS = DefaultMcpTimeoutMS
			cfg.McpServers[name] = server
		}
	}
	return &cfg, nil
}

// LoadMcpConfig resolves an --mcp-config value. A value starting with "{"
// is inline JSON; anything else is a file path.
func LoadMcpConfig(input string) (*McpConfig, error) {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") {
		return ParseMcpConfig([]byte(trimmed))
	}
	raw, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read mcp config %s: %w", input, err)
	}
	return ParseMcpConfig(raw)
}

// MergeMcpConfigs combines configs; later configs override earlier ones.
func MergeMcpConfigs(configs []*McpConfig) *McpConfig {
	merged := &McpConfig{McpServers: make(map[string]McpServerConfig)}
	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		for name, server := range cfg.McpServers {
			merged.McpServers[name] = server
		}
	}
	return merged
}

// ServerNames returns the configured server names in stable order.
func (c *McpConfig) ServerNames() []string {
	names := make([]string, 0, len(c.McpServers))
	for name := range c.McpServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasServers reports whether any servers are configured.
func (c *McpConfig) HasServers() bool {
	return len(c.McpServers) > 0
}
