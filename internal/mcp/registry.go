package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mocraimer/genflow/internal/observability"
)

// ParamType is a synthesized argument type for a tool callable, derived
// from a JSON-schema property type (§4.3, §9 "dynamic tool binding ->
// typed callables").
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// jsonSchemaTypeMap is the exact type mapping required by §4.3: unknown
// schema types default to ParamString rather than failing.
var jsonSchemaTypeMap = map[string]ParamType{
	"string":  ParamString,
	"integer": ParamInteger,
	"number":  ParamNumber,
	"boolean": ParamBoolean,
	"array":   ParamArray,
	"object":  ParamObject,
}

// ParamSpec describes one synthesized callable argument.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
}

// ToolBinding is a discovered tool together with the typed argument shape
// synthesized from its inputSchema and the server it was discovered from.
type ToolBinding struct {
	Tool   *MCPTool
	Params []ParamSpec
	Server *ServerConfig
}

type rawSchema struct {
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// paramsFromSchema parses a tool's inputSchema into ParamSpecs, applying
// the type mapping table and defaulting unrecognized types to string
// (§4.3). An empty or absent schema yields no parameters.
func paramsFromSchema(schema json.RawMessage) []ParamSpec {
	if len(schema) == 0 {
		return nil
	}
	var raw rawSchema
	if err := json.Unmarshal(schema, &raw); err != nil {
		return nil
	}
	required := make(map[string]bool, len(raw.Required))
	for _, r := range raw.Required {
		required[r] = true
	}

	names := make([]string, 0, len(raw.Properties))
	for name := range raw.Properties {
		names = append(names, name)
	}
	params := make([]ParamSpec, 0, len(names))
	for _, name := range names {
		prop := raw.Properties[name]
		t, ok := jsonSchemaTypeMap[prop.Type]
		if !ok {
			t = ParamString
		}
		params = append(params, ParamSpec{Name: name, Type: t, Required: required[name]})
	}
	return params
}

// Registry is the Tool Registry: it discovers tools from pooled Clients
// and synthesizes callables an Agent's model binding can invoke (§4.3).
type Registry struct {
	pool   *Pool
	logger *observability.Logger

	mu       sync.RWMutex
	bindings map[string]*ToolBinding
	schemas  map[string]*jsonschema.Schema
}

// NewRegistry constructs a Registry backed by pool.
func NewRegistry(pool *Pool, logger *observability.Logger) *Registry {
	if logger == nil {
		logger = observability.Default()
	}
	return &Registry{
		pool:     pool,
		logger:   logger,
		bindings: make(map[string]*ToolBinding),
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

// Discover acquires a Client for config, lists its tools, and registers a
// ToolBinding for each one. On success the acquired pool reference is kept;
// the caller gives it back with Pool.Release. Discovery is additive: tools
// from multiple servers accumulate in the same registry, last-write-wins on
// name clash.
func (r *Registry) Discover(ctx context.Context, config *ServerConfig) error {
	client, err := r.pool.Acquire(ctx, config)
	if err != nil {
		return err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		r.pool.Release(config)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tool := range tools {
		r.bindings[tool.Name] = &ToolBinding{
			Tool:   tool,
			Params: paramsFromSchema(tool.InputSchema),
			Server: config,
		}
		if schema, ok := compileSchema(tool.Name, tool.InputSchema); ok {
			r.schemas[tool.Name] = schema
		}
	}
	return nil
}

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, bool) {
	if len(schema) == 0 {
		return nil, false
	}
	url := "mem://tool/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(schema)); err != nil {
		return nil, false
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, false
	}
	return compiled, true
}

// Bindings returns every currently registered tool binding.
func (r *Registry) Bindings() map[string]*ToolBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*ToolBinding, len(r.bindings))
	for k, v := range r.bindings {
		out[k] = v
	}
	return out
}

// Invoke validates arguments against the tool's schema, re-acquires a
// Client for the originating server, calls the tool, and stringifies the
// result. Tool-level failures — validation, connection, or protocol — are
// returned as a human-readable error string rather than an error value, so
// a model consuming tool output can see and react to the failure (§4.3,
// §7 ToolError propagation policy).
func (r *Registry) Invoke(ctx context.Context, toolName string, arguments json.RawMessage) string {
	r.mu.RLock()
	binding, ok := r.bindings[toolName]
	schema := r.schemas[toolName]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", toolName)
	}

	if schema != nil && len(arguments) > 0 {
		var v any
		if err := json.Unmarshal(arguments, &v); err != nil {
			return fmt.Sprintf("Error: invalid arguments: %v", err)
		}
		if err := schema.Validate(v); err != nil {
			return fmt.Sprintf("Error: invalid arguments: %v", err)
		}
	}

	client, err := r.pool.Acquire(ctx, binding.Server)
	if err != nil {
		toolErr := &ToolError{ToolName: toolName, Cause: err}
		return fmt.Sprintf("Error: %v", toolErr)
	}
	defer r.pool.Release(binding.Server)

	result, err := client.CallTool(ctx, toolName, arguments)
	if err != nil {
		toolErr := &ToolError{ToolName: toolName, Cause: err}
		return fmt.Sprintf("Error: %v", toolErr)
	}

	return stringifyResult(result)
}

// stringifyResult renders a tool result for model consumption: strings
// pass through, lists are newline-joined, everything else is rendered
// verbatim (§4.3 Invocation).
func stringifyResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "\n")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringifyResult(item)
		}
		return strings.Join(parts, "\n")
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
