// Package agent implements the agent runtime that workflow tasks dispatch
// to: a named, independently lifecycled unit wrapping an optional model
// provider and an optional set of MCP tool servers, grounded on the
// teacher's internal/agent runtime/tool_registry layering.
package agent

import (
	"time"

	"github.com/mocraimer/genflow/internal/mcp"
)

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 300 * time.Second
)

// Config describes one agent before it is instantiated.
type Config struct {
	ID           string
	Name         string
	Description  string
	Model        string
	SystemPrompt string
	Provider     string // registry key into llmprovider.Registry; empty means "acknowledge only"
	MCPServers   []mcp.ServerConfig
	MaxRetries   int
	Timeout      time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Name == "" {
		c.Name = c.ID
	}
}
