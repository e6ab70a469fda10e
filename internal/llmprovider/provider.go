// Package llmprovider binds the agent runtime's model-invocation contract
// (spec §6: invoke(model_id, system_prompt, user_message, tools, history) ->
// {value, usage}) to concrete third-party model SDKs, grounded on the
// teacher's internal/agent/providers package.
package llmprovider

import "context"

// Usage reports token accounting for one Invoke call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ToolDef is a tool the model may choose to call, described the same way
// mcp.MCPTool describes it to the tool registry.
type ToolDef struct {
	Name        string
	Description string
	InputSchema []byte
}

// HistoryMessage is one turn of prior conversation supplied for context.
type HistoryMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// InvokeRequest carries everything a Provider needs to produce one reply.
type InvokeRequest struct {
	Model        string
	SystemPrompt string
	UserMessage  string
	Tools        []ToolDef
	History      []HistoryMessage
	MaxTokens    int
}

// InvokeResponse is a Provider's reply plus token usage for the call.
type InvokeResponse struct {
	Value string
	Usage Usage
}

// Provider is implemented by each bound model backend.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, req InvokeRequest) (InvokeResponse, error)
}

const defaultMaxTokens = 1024
