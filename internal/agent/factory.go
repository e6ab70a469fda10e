package agent

import (
	"fmt"

	"github.com/mocraimer/genflow/internal/llmprovider"
	"github.com/mocraimer/genflow/internal/mcp"
	"github.com/mocraimer/genflow/internal/observability"
)

// Factory builds agents from named model providers and a shared MCP pool,
// grounded on the teacher's AgentFactory-equivalent wiring in cmd/ and
// internal/agent/options.go, generalized here into convenience
// constructors for the agent shapes the workflow runtime commonly needs.
type Factory struct {
	providers *llmprovider.Registry
	pool      *mcp.Pool
	logger    *observability.Logger
}

func NewFactory(providers *llmprovider.Registry, pool *mcp.Pool, logger *observability.Logger) *Factory {
	return &Factory{providers: providers, pool: pool, logger: logger}
}

// Create builds an Agent from config, resolving config.Provider through the
// factory's provider registry. An empty Provider yields a providerless
// acknowledge-only agent rather than an error.
func (f *Factory) Create(config Config) (*Agent, error) {
	var provider llmprovider.Provider
	if config.Provider != "" {
		p, err := f.providers.Get(config.Provider)
		if err != nil {
			return nil, fmt.Errorf("agent factory: %s: %w", config.ID, err)
		}
		provider = p
	}
	return New(config, provider, f.pool, f.logger), nil
}

// CreateWorkflowAgent builds an agent intended purely as a workflow task
// executor: no MCP servers, a model provider, and a system prompt geared
// toward following a task description literally.
func (f *Factory) CreateWorkflowAgent(id, provider, model string) (*Agent, error) {
	return f.Create(Config{
		ID:           id,
		Name:         id,
		Provider:     provider,
		Model:        model,
		SystemPrompt: "You are a workflow task executor. Complete the described task and report the outcome concisely.",
	})
}

// CreateStandardAgent builds a general-purpose conversational agent with no
// tool access, suitable for direct bus message handling.
func (f *Factory) CreateStandardAgent(id, description, provider, model, systemPrompt string) (*Agent, error) {
	return f.Create(Config{
		ID:           id,
		Name:         id,
		Description:  description,
		Provider:     provider,
		Model:        model,
		SystemPrompt: systemPrompt,
	})
}

// CreateGithubAgent builds an agent wired to a GitHub MCP tool server, the
// common case of an agent whose tool surface is entirely delegated to an
// external server rather than built in.
func (f *Factory) CreateGithubAgent(id, provider, model, githubToken string) (*Agent, error) {
	return f.Create(Config{
		ID:           id,
		Name:         id,
		Description:  "GitHub-integrated agent",
		Provider:     provider,
		Model:        model,
		SystemPrompt: "You are an agent with access to GitHub repository tools. Use them to satisfy the task.",
		MCPServers: []mcp.ServerConfig{{
			ID:      id + "-github",
			Command: "npx",
			Args:    []string{"-y", "@modelcontextprotocol/server-github"},
			Env:     map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": githubToken},
		}},
	})
}

// CreateFilesystemAgent builds an agent wired to a filesystem MCP tool
// server rooted at rootPath.
func (f *Factory) CreateFilesystemAgent(id, provider, model, rootPath string) (*Agent, error) {
	return f.Create(Config{
		ID:           id,
		Name:         id,
		Description:  "Filesystem-integrated agent",
		Provider:     provider,
		Model:        model,
		SystemPrompt: "You are an agent with access to filesystem tools scoped to a single directory. Use them to satisfy the task.",
		MCPServers: []mcp.ServerConfig{{
			ID:      id + "-filesystem",
			Command: "npx",
			Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", rootPath},
		}},
	})
}
