package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistryDiscoverAndInvoke(t *testing.T) {
	pool := NewPool(nil, nil)
	defer pool.Shutdown()
	registry := NewRegistry(pool, nil)

	config := fakeServerConfig()
	if err := registry.Discover(context.Background(), config); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	bindings := registry.Bindings()
	binding, ok := bindings["echo"]
	if !ok {
		t.Fatal("expected echo tool to be registered")
	}
	if len(binding.Params) != 1 || binding.Params[0].Name != "text" || binding.Params[0].Type != ParamString {
		t.Fatalf("unexpected params: %+v", binding.Params)
	}
	if !binding.Params[0].Required {
		t.Error("expected text param to be required")
	}

	result := registry.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	if result != "hi" {
		t.Errorf("Invoke result = %q, want %q", result, "hi")
	}
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	pool := NewPool(nil, nil)
	defer pool.Shutdown()
	registry := NewRegistry(pool, nil)

	result := registry.Invoke(context.Background(), "nonexistent", nil)
	if result == "" {
		t.Fatal("expected a human-readable error string")
	}
}

func TestRegistryInvokeValidatesArguments(t *testing.T) {
	pool := NewPool(nil, nil)
	defer pool.Shutdown()
	registry := NewRegistry(pool, nil)

	if err := registry.Discover(context.Background(), fakeServerConfig()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	// Missing the required "text" property.
	result := registry.Invoke(context.Background(), "echo", json.RawMessage(`{}`))
	if result == "hi" {
		t.Fatal("expected validation failure for missing required argument, got success")
	}
}

func TestParamsFromSchemaUnknownTypeDefaultsToString(t *testing.T) {
	schema := json.RawMessage(`{"properties":{"weird":{"type":"something-unrecognized"}}}`)
	params := paramsFromSchema(schema)
	if len(params) != 1 || params[0].Type != ParamString {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestParamsFromSchemaEmpty(t *testing.T) {
	if params := paramsFromSchema(nil); params != nil {
		t.Errorf("expected nil params for empty schema, got %+v", params)
	}
}
