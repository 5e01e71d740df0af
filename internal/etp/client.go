// Package etp implements the External Tool Protocol: a per-server session
// over either a child process's stdio or streamable HTTP, wire-compatible
// with the Model Context Protocol (spec 2025-11-25) for initialize,
// tools/list, and tools/call. Grounded on the teacher's internal/mcp
// package (Manager/Client/transport_stdio/transport_http), generalized to
// spec.md §4.5's reconnect-with-backoff and sandbox-wrapping semantics,
// and using mark3labs/mcp-go for wire framing instead of hand-rolled
// JSON-RPC.
package etp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sdkclient "github.com/mark3labs/mcp-go/client"
	sdktransport "github.com/mark3labs/mcp-go/client/transport"
	sdkmcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/arclight-ai/sentinel/pkg/models"
)

// clientName/clientVersion identify Sentinel to servers during the
// initialize handshake.
const (
	clientName    = "sentinel"
	clientVersion = "0.1.0"
)

// ToolInfo captures one tool's metadata as discovered via tools/list.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Client wraps the mcp-go SDK client for a single external server. It is
// safe for concurrent use; Connect/Close mutate the inner SDK client under
// a lock so a reconnect never races a concurrent CallTool.
type Client struct {
	mu    sync.RWMutex
	cfg   models.ExternalServerConfig
	inner sdkclient.MCPClient
}

// NewClient creates an unconnected Client for cfg. Connect must be called
// before ListTools or CallTool.
func NewClient(cfg models.ExternalServerConfig) *Client {
	return &Client{cfg: cfg}
}

// launchCommand is overridden by the manager when a stdio server must be
// sandboxed; nil means launch cfg.Command/cfg.Args directly.
type launchCommand struct {
	command string
	args    []string
}

// Connect establishes the transport and performs the MCP initialize
// handshake. launch overrides the command/args actually exec'd (used by
// the manager to route through the sandbox launcher); pass nil to launch
// cfg.Command/cfg.Args unmodified.
func (c *Client) Connect(ctx context.Context, launch *launchCommand) error {
	var inner sdkclient.MCPClient

	switch c.cfg.Transport {
	case models.TransportStdio:
		command, args := c.cfg.Command, c.cfg.Args
		if launch != nil {
			command, args = launch.command, launch.args
		}
		env := make([]string, 0, len(c.cfg.Env))
		for k, v := range c.cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cli, err := sdkclient.NewStdioMCPClient(command, env, args...)
		if err != nil {
			return fmt.Errorf("etp: start stdio server %q: %w", c.cfg.Name, err)
		}
		inner = cli

	case models.TransportHTTP:
		var opts []sdktransport.StreamableHTTPCOption
		if len(c.cfg.Headers) > 0 {
			opts = append(opts, sdktransport.WithHTTPHeaders(c.cfg.Headers))
		}
		cli, err := sdkclient.NewStreamableHttpClient(c.cfg.URL, opts...)
		if err != nil {
			return fmt.Errorf("etp: create http client %q: %w", c.cfg.Name, err)
		}
		if err := cli.Start(ctx); err != nil {
			return fmt.Errorf("etp: start http client %q: %w", c.cfg.Name, err)
		}
		inner = cli

	default:
		return fmt.Errorf("etp: unknown transport %q for server %q", c.cfg.Transport, c.cfg.Name)
	}

	_, err := inner.Initialize(ctx, sdkmcp.InitializeRequest{
		Params: sdkmcp.InitializeParams{
			ProtocolVersion: sdkmcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdkmcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	})
	if err != nil {
		_ = inner.Close()
		return fmt.Errorf("etp: initialize server %q: %w", c.cfg.Name, err)
	}

	c.mu.Lock()
	c.inner = inner
	c.mu.Unlock()
	return nil
}

// ListTools returns metadata for every tool this server exposes.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	inner, err := c.connected()
	if err != nil {
		return nil, err
	}

	result, err := inner.ListTools(ctx, sdkmcp.ListToolsRequest{})
	if err != nil {
		return nil, &TransportError{Server: c.cfg.Name, Err: err}
	}

	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return tools, nil
}

// CallTool invokes name on this server with args and returns the
// concatenated text content. A server-reported IsError is a normal
// (non-transport) failure; a transport/IO failure is wrapped in
// TransportError so the manager knows to trigger reconnect.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	inner, err := c.connected()
	if err != nil {
		return "", err
	}

	req := sdkmcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := inner.CallTool(ctx, req)
	if err != nil {
		return "", &TransportError{Server: c.cfg.Name, Err: err}
	}

	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if result.IsError {
		return "", fmt.Errorf("etp: tool %q on %q returned an error: %s", name, c.cfg.Name, text)
	}
	return text, nil
}

// Close terminates the connection and releases the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	inner := c.inner
	c.inner = nil
	c.mu.Unlock()
	if inner == nil {
		return nil
	}
	return inner.Close()
}

func (c *Client) connected() (sdkclient.MCPClient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.inner == nil {
		return nil, fmt.Errorf("etp: client %q not connected", c.cfg.Name)
	}
	return c.inner, nil
}

// TransportError marks a failure that indicates the underlying stream is
// broken (as opposed to a well-formed tool error response). The manager
// triggers reconnect on TransportError and does not automatically replay
// the call; the executor's own retry handles replay.
type TransportError struct {
	Server string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("etp: transport error on server %q: %v", e.Server, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
