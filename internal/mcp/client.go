package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mocraimer/genflow/internal/observability"
)

// Client is one JSON-RPC session with a tool server subprocess (§4.1
// Tool-Server Client). It is safe for concurrent use, though the protocol
// itself serializes requests: only one Call is ever in flight at a time.
type Client struct {
	config *ServerConfig
	logger *observability.Logger

	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Scanner
	stderr  io.ReadCloser

	callMu sync.Mutex // serializes Call/Notify: at most one request in flight

	pending   map[int64]chan *jsonrpcResponse
	pendingMu sync.Mutex
	nextID    atomic.Int64

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup

	mu         sync.RWMutex
	tools      []*MCPTool
	resources  []*MCPResource
	prompts    []*MCPPrompt
	serverInfo ServerInfo
}

// NewClient constructs a disconnected Client for config. Connect must be
// called (or triggered implicitly by ListTools/CallTool) before use.
func NewClient(config *ServerConfig, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.Default()
	}
	return &Client{
		config:  config,
		logger:  logger.With("mcp_server", config.ID),
		pending: make(map[int64]chan *jsonrpcResponse),
	}
}

// Connected reports whether the session is currently established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Config returns the server configuration this client was built from.
func (c *Client) Config() *ServerConfig {
	return c.config
}

// ServerInfo returns the identity reported by the server at connect.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Connect spawns the configured subprocess and performs the MCP
// initialize/initialized handshake (§4.1 Connect). Any failure during the
// handshake disconnects the half-opened session before returning.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.config.Validate(); err != nil {
		return err
	}

	c.process = exec.CommandContext(ctx, c.config.Command, c.config.Args...)
	c.process.Env = os.Environ()
	for k, v := range c.config.Env {
		c.process.Env = append(c.process.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if c.config.WorkDir != "" {
		c.process.Dir = c.config.WorkDir
	}

	stdin, err := c.process.StdinPipe()
	if err != nil {
		return &ConnectionError{ServerID: c.config.ID, Reason: "stdin pipe", Cause: err}
	}
	c.stdin = stdin

	stdout, err := c.process.StdoutPipe()
	if err != nil {
		return &ConnectionError{ServerID: c.config.ID, Reason: "stdout pipe", Cause: err}
	}
	c.stdout = bufio.NewScanner(stdout)
	c.stdout.Buffer(make([]byte, 64*1024), 1024*1024)

	c.stderr, _ = c.process.StderrPipe()

	if err := c.process.Start(); err != nil {
		return &ConnectionError{ServerID: c.config.ID, Reason: "start process", Cause: err}
	}

	c.stopChan = make(chan struct{})
	c.connected.Store(true)
	c.logger.Info(ctx, "started tool server process", "command", c.config.Command, "pid", c.process.Process.Pid)

	c.wg.Add(1)
	go c.readLoop()
	if c.stderr != nil {
		c.wg.Add(1)
		go c.logStderr()
	}

	if err := c.handshake(ctx); err != nil {
		c.Disconnect()
		return err
	}

	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	result, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
	})
	if err != nil {
		return &ConnectionError{ServerID: c.config.ID, Reason: "initialize handshake", Cause: err}
	}

	var initResult InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		return &ConnectionError{ServerID: c.config.ID, Reason: "parse initialize response", Cause: err}
	}
	c.mu.Lock()
	c.serverInfo = initResult.ServerInfo
	c.mu.Unlock()

	if err := c.notify(ctx, "notifications/initialized", nil); err != nil {
		return &ConnectionError{ServerID: c.config.ID, Reason: "send initialized notification", Cause: err}
	}

	return nil
}

// gracePeriod is how long Disconnect waits for a graceful exit before
// force-killing the subprocess (§4.1 Disconnect).
const gracePeriod = 100 * time.Millisecond

// Disconnect terminates the subprocess and clears cached state. It is
// idempotent and never returns an error to the caller (§4.1, §8).
func (c *Client) Disconnect() {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}
	close(c.stopChan)

	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.process != nil && c.process.Process != nil {
		done := make(chan struct{})
		go func() {
			_ = c.process.Wait()
			close(done)
		}()
		_ = c.process.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(gracePeriod):
			_ = c.process.Process.Kill()
			<-done
		}
	}

	c.wg.Wait()

	c.mu.Lock()
	c.tools = nil
	c.resources = nil
	c.prompts = nil
	c.mu.Unlock()
}

// ListTools returns the server's advertised tools, discovering and caching
// them on first call (§4.1 List tools). Auto-connects if disconnected.
func (c *Client) ListTools(ctx context.Context) ([]*MCPTool, error) {
	c.mu.RLock()
	cached := c.tools
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	if !c.Connected() {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "tools/list", Reason: "request failed", Cause: err}
	}
	var resp ListToolsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "tools/list", Reason: "parse response", Cause: err}
	}

	c.mu.Lock()
	c.tools = resp.Tools
	c.mu.Unlock()
	return resp.Tools, nil
}

// Resources returns the server's advertised resources, discovering and
// caching them on first call exactly like ListTools. Auto-connects if
// disconnected. A server that doesn't implement resources/list returns a
// ProtocolError, which callers that don't care about resources can ignore.
func (c *Client) Resources(ctx context.Context) ([]*MCPResource, error) {
	c.mu.RLock()
	cached := c.resources
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	if !c.Connected() {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	result, err := c.call(ctx, "resources/list", nil)
	if err != nil {
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "resources/list", Reason: "request failed", Cause: err}
	}
	var resp ListResourcesResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "resources/list", Reason: "parse response", Cause: err}
	}

	c.mu.Lock()
	c.resources = resp.Resources
	c.mu.Unlock()
	return resp.Resources, nil
}

// Prompts returns the server's advertised prompt templates, discovering
// and caching them on first call exactly like ListTools. Auto-connects if
// disconnected.
func (c *Client) Prompts(ctx context.Context) ([]*MCPPrompt, error) {
	c.mu.RLock()
	cached := c.prompts
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	if !c.Connected() {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	result, err := c.call(ctx, "prompts/list", nil)
	if err != nil {
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "prompts/list", Reason: "request failed", Cause: err}
	}
	var resp ListPromptsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "prompts/list", Reason: "parse response", Cause: err}
	}

	c.mu.Lock()
	c.prompts = resp.Prompts
	c.mu.Unlock()
	return resp.Prompts, nil
}

// CallTool invokes name with arguments and returns its content, collapsed
// to a single value per §4.1 Call tool: text content items are
// newline-joined into a string; if no text items are present, the raw
// result is returned.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (any, error) {
	if !c.Connected() {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	result, err := c.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "tools/call", Reason: fmt.Sprintf("tool %q", name), Cause: err}
	}

	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		// Not every tool result necessarily matches ToolCallResult's shape;
		// fall back to returning it raw.
		var raw any
		if jerr := json.Unmarshal(result, &raw); jerr == nil {
			return raw, nil
		}
		return nil, &ProtocolError{ServerID: c.config.ID, Method: "tools/call", Reason: "parse response", Cause: err}
	}

	var texts []string
	for _, item := range callResult.Content {
		if item.Type == "text" {
			texts = append(texts, item.Text)
		}
	}
	if len(texts) > 0 {
		joined := texts[0]
		for _, t := range texts[1:] {
			joined += "\n" + t
		}
		return joined, nil
	}
	return callResult, nil
}

// call sends a request and blocks for its matching response, honouring
// ctx, the session's configured timeout, and transport shutdown (§4.1
// Request/response discipline). Only one call is permitted in flight at a
// time; concurrent callers queue on callMu.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if !c.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	id := c.nextID.Add(1)
	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respCh := make(chan *jsonrpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.config.timeout()):
		return nil, fmt.Errorf("request timeout after %s", c.config.timeout())
	case <-c.stopChan:
		return nil, fmt.Errorf("session closed")
	}
}

func (c *Client) notify(ctx context.Context, method string, params any) error {
	notif := jsonrpcNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	_, err = c.stdin.Write(append(data, '\n'))
	return err
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.connected.Store(false)

	for c.stdout.Scan() {
		select {
		case <-c.stopChan:
			return
		default:
		}
		line := c.stdout.Text()
		if line == "" {
			continue
		}
		c.processLine(line)
	}
}

func (c *Client) processLine(line string) {
	var resp jsonrpcResponse
	if err := json.Unmarshal([]byte(line), &resp); err == nil && resp.ID != nil {
		c.pendingMu.Lock()
		if ch, ok := c.pending[*resp.ID]; ok {
			select {
			case ch <- &resp:
			default:
			}
			delete(c.pending, *resp.ID)
		}
		c.pendingMu.Unlock()
	}
}

func (c *Client) logStderr() {
	defer c.wg.Done()
	scanner := bufio.NewScanner(c.stderr)
	for scanner.Scan() {
		select {
		case <-c.stopChan:
			return
		default:
		}
		if line := scanner.Text(); line != "" {
			c.logger.Debug(context.Background(), "tool server stderr", "line", line)
		}
	}
}
