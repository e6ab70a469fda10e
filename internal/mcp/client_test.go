package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// fakeServerScript is a POSIX shell program standing in for a real tool
// server: it speaks just enough of the protocol to exercise Client's
// initialize handshake, tools/list, and tools/call paths (§8 scenario 4).
const fakeServerScript = `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"fake","version":"0.1"}}}\n' "$id"
      ;;
    *'"method":"tools/list"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"tools":[{"name":"echo","description":"echoes text","inputSchema":{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}}]}}\n' "$id"
      ;;
    *'"method":"tools/call"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"content":[{"type":"text","text":"hi"}]}}\n' "$id"
      ;;
    *'"method":"resources/list"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"resources":[{"uri":"file:///tmp/x","name":"x","mimeType":"text/plain"}]}}\n' "$id"
      ;;
    *'"method":"prompts/list"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"prompts":[{"name":"greeting","description":"says hi"}]}}\n' "$id"
      ;;
    *) ;;
  esac
done
`

func fakeServerConfig() *ServerConfig {
	return &ServerConfig{
		ID:      "fake",
		Command: "sh",
		Args:    []string{"-c", fakeServerScript},
		Timeout: 5 * time.Second,
	}
}

func TestClientConnectRejectsEmptyCommand(t *testing.T) {
	c := NewClient(&ServerConfig{}, nil)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestClientDisconnectIdempotent(t *testing.T) {
	c := NewClient(&ServerConfig{Command: "sh"}, nil)
	c.Disconnect()
	c.Disconnect()
}

func TestClientHandshakeAndToolRoundTrip(t *testing.T) {
	c := NewClient(fakeServerConfig(), nil)
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if !c.Connected() {
		t.Fatal("expected Connected() true after successful Connect")
	}
	if got := c.ServerInfo().Name; got != "fake" {
		t.Errorf("ServerInfo().Name = %q, want %q", got, "fake")
	}

	tools, err := c.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", tools)
	}

	result, err := c.CallTool(ctx, "echo", json.RawMessage(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result != "hi" {
		t.Fatalf("CallTool result = %v, want %q", result, "hi")
	}
}

func TestClientResourcesAndPromptsAreCached(t *testing.T) {
	c := NewClient(fakeServerConfig(), nil)
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	resources, err := c.Resources(ctx)
	if err != nil {
		t.Fatalf("Resources: %v", err)
	}
	if len(resources) != 1 || resources[0].URI != "file:///tmp/x" {
		t.Fatalf("unexpected resources: %+v", resources)
	}

	prompts, err := c.Prompts(ctx)
	if err != nil {
		t.Fatalf("Prompts: %v", err)
	}
	if len(prompts) != 1 || prompts[0].Name != "greeting" {
		t.Fatalf("unexpected prompts: %+v", prompts)
	}

	c.mu.Lock()
	c.resources = append(c.resources, &MCPResource{URI: "stale"})
	c.mu.Unlock()
	cached, err := c.Resources(ctx)
	if err != nil {
		t.Fatalf("Resources (cached): %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("expected cached Resources to skip a second resources/list call, got %+v", cached)
	}
}

func TestClientDisconnectAfterConnectIsClean(t *testing.T) {
	c := NewClient(fakeServerConfig(), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Disconnect()
	if c.Connected() {
		t.Fatal("expected Connected() false after Disconnect")
	}
	c.Disconnect() // idempotent
}
