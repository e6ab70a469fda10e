// Package config loads GenFlow's YAML configuration, grounded on the
// teacher's internal/config package for the env-expansion-before-parse
// pattern, with the $include/json5 composition machinery left out (no
// SPEC_FULL.md component calls for multi-file config composition; a single
// YAML document covers every configured section).
package config

import (
	"fmt"
	"time"

	"github.com/mocraimer/genflow/internal/agent"
	"github.com/mocraimer/genflow/internal/mcp"
)

// ProviderConfig configures one named llmprovider.Provider binding.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"` // anthropic | openai | bedrock
	APIKey       string `yaml:"api_key"`
	Region       string `yaml:"region"`
	DefaultModel string `yaml:"default_model"`
}

// AgentConfig is the YAML shape for one agent.Config.
type AgentConfig struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description"`
	Model        string             `yaml:"model"`
	SystemPrompt string             `yaml:"system_prompt"`
	Provider     string             `yaml:"provider"`
	MCPServers   []mcp.ServerConfig `yaml:"mcp_servers"`
	MaxRetries   int                `yaml:"max_retries"`
	Timeout      time.Duration      `yaml:"timeout"`
}

func (c AgentConfig) ToAgentConfig() agent.Config {
	return agent.Config{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		Model:        c.Model,
		SystemPrompt: c.SystemPrompt,
		Provider:     c.Provider,
		MCPServers:   c.MCPServers,
		MaxRetries:   c.MaxRetries,
		Timeout:      c.Timeout,
	}
}

// ScheduleConfig is one cron-triggered workflow run.
type ScheduleConfig struct {
	Name         string `yaml:"name"`
	CronSpec     string `yaml:"cron"`
	WorkflowFile string `yaml:"workflow_file"`
}

// BusConfig configures the message bus.
type BusConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Config is GenFlow's top-level configuration document.
type Config struct {
	Providers     []ProviderConfig    `yaml:"providers"`
	Agents        []AgentConfig       `yaml:"agents"`
	Schedules     []ScheduleConfig    `yaml:"schedules"`
	Bus           BusConfig           `yaml:"bus"`
	Observability ObservabilityConfig `yaml:"observability"`
}

func (c *Config) applyDefaults() {
	if c.Bus.QueueCapacity <= 0 {
		c.Bus.QueueCapacity = 1000
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
}

// Validate checks structural constraints Load cannot catch via YAML tags
// alone: unique agent ids and providers that name a supported kind.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("config: agent entry missing id")
		}
		if seen[a.ID] {
			return fmt.Errorf("config: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}
	for _, p := range c.Providers {
		switch p.Kind {
		case "anthropic", "openai", "bedrock":
		default:
			return fmt.Errorf("config: provider %q has unsupported kind %q", p.Name, p.Kind)
		}
	}
	return nil
}
