package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mocraimer/genflow/internal/bus"
	"github.com/mocraimer/genflow/internal/llmprovider"
	"github.com/mocraimer/genflow/internal/mcp"
	"github.com/mocraimer/genflow/internal/observability"
	"github.com/mocraimer/genflow/pkg/models"
)

// Agent wraps one Config into a runnable unit: an optional model provider
// for turning a task description into a reply, an optional MCP tool
// registry the provider's tool calls can be routed through, and an inbox of
// bus.HandlerFunc-compatible message handling.
type Agent struct {
	config   Config
	provider llmprovider.Provider
	pool     *mcp.Pool
	registry *mcp.Registry
	logger   *observability.Logger

	running atomic.Bool
	mu      sync.Mutex
}

// New constructs an Agent. provider may be nil, in which case Execute falls
// back to a canned acknowledgement (§4.4: a providerless agent still
// produces a deterministic, successful result).
func New(config Config, provider llmprovider.Provider, pool *mcp.Pool, logger *observability.Logger) *Agent {
	config.applyDefaults()
	a := &Agent{config: config, provider: provider, pool: pool, logger: logger}
	if pool != nil && len(config.MCPServers) > 0 {
		a.registry = mcp.NewRegistry(pool, logger)
	}
	return a
}

func (a *Agent) ID() string     { return a.config.ID }
func (a *Agent) Config() Config { return a.config }

// Start connects the agent's configured MCP servers and marks it runnable.
// An agent with no MCP servers has nothing to connect and starts immediately.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running.Load() {
		return nil
	}
	if a.registry != nil {
		for i := range a.config.MCPServers {
			sc := &a.config.MCPServers[i]
			if err := a.registry.Discover(ctx, sc); err != nil {
				return fmt.Errorf("agent %s: discover tools on %s: %w", a.config.ID, sc.ID, err)
			}
		}
	}
	a.running.Store(true)
	return nil
}

// Stop releases pooled MCP connections acquired for this agent's servers
// and marks it non-runnable. Pooled clients are reference counted, so this
// never disconnects a server another agent still references.
func (a *Agent) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}
	if a.pool != nil {
		for i := range a.config.MCPServers {
			a.pool.Release(&a.config.MCPServers[i])
		}
	}
	return nil
}

func (a *Agent) IsRunning() bool { return a.running.Load() }

// Execute carries out one task for this agent: §4.4's resolve-agent step
// hands the task description and merged context in, and gets back a
// models.AgentResult. A provider failure is a failed AgentResult rather than
// a Go error, so a failure to produce a reply is itself a terminal,
// recordable outcome; the only Go error returned is ErrNotRunning, for an
// agent that has not been started.
func (a *Agent) Execute(ctx context.Context, taskDescription string, taskContext map[string]any) (models.AgentResult, error) {
	if !a.running.Load() {
		return models.AgentResult{}, ErrNotRunning
	}

	if a.provider == nil {
		return models.Success(fmt.Sprintf("Task %q acknowledged by %s", taskDescription, a.config.Name), map[string]any{
			"agent_id": a.config.ID,
			"mode":     "acknowledge",
		}), nil
	}

	req := llmprovider.InvokeRequest{
		Model:        a.config.Model,
		SystemPrompt: a.config.SystemPrompt,
		UserMessage:  renderTask(taskDescription, taskContext),
		History:      historyFromContext(taskContext),
	}
	if a.registry != nil {
		req.Tools = toolDefsFromBindings(a.registry.Bindings())
	}

	resp, err := a.provider.Invoke(ctx, req)
	if err != nil {
		return models.AgentResult{
			Success: false,
			Error:   err.Error(),
			Metadata: map[string]any{
				"agent_id": a.config.ID,
				"provider": a.provider.Name(),
			},
		}, nil
	}

	return models.AgentResult{
		Success: true,
		Result:  resp.Value,
		Metadata: map[string]any{
			"agent_id":          a.config.ID,
			"provider":          a.provider.Name(),
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
		},
	}, nil
}

// HandleMessage lets an agent participate on the bus: register it as a
// bus.HandlerFunc via bus.Subscribe(bus.Filter{Recipient: a.ID()}, agent.HandleMessage).
func (a *Agent) HandleMessage(msg models.AgentMessage) error {
	if !a.running.Load() {
		return ErrNotRunning
	}
	result, err := a.Execute(context.Background(), msg.Content, nil)
	if err != nil {
		return err
	}
	if a.logger != nil {
		a.logger.Debug(context.Background(), "agent handled bus message", "agent_id", a.config.ID, "success", result.Success)
	}
	return nil
}

func renderTask(description string, taskContext map[string]any) string {
	if len(taskContext) == 0 {
		return description
	}
	return fmt.Sprintf("%s\n\ncontext: %v", description, taskContext)
}

// historyFromContext extracts an optional message history from
// taskContext["history"] (spec §4.4: "an optional message history drawn
// from context.history"). It accepts history built directly in Go
// ([]llmprovider.HistoryMessage) as well as the []map[string]any /
// []any-of-map shape a YAML- or JSON-sourced context produces.
func historyFromContext(taskContext map[string]any) []llmprovider.HistoryMessage {
	raw, ok := taskContext["history"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []llmprovider.HistoryMessage:
		return v
	case []map[string]any:
		history := make([]llmprovider.HistoryMessage, 0, len(v))
		for _, m := range v {
			history = append(history, historyMessageFromMap(m))
		}
		return history
	case []any:
		history := make([]llmprovider.HistoryMessage, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				history = append(history, historyMessageFromMap(m))
			}
		}
		return history
	default:
		return nil
	}
}

func historyMessageFromMap(m map[string]any) llmprovider.HistoryMessage {
	role, _ := m["role"].(string)
	content, _ := m["content"].(string)
	return llmprovider.HistoryMessage{Role: role, Content: content}
}

func toolDefsFromBindings(bindings map[string]*mcp.ToolBinding) []llmprovider.ToolDef {
	defs := make([]llmprovider.ToolDef, 0, len(bindings))
	for name, b := range bindings {
		defs = append(defs, llmprovider.ToolDef{
			Name:        name,
			Description: b.Tool.Description,
			InputSchema: b.Tool.InputSchema,
		})
	}
	return defs
}

var _ bus.HandlerFunc = (&Agent{}).HandleMessage
