// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 30 * time.Second

	clientName    = "scribe"
	clientVersion = "0.1.0"
)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry replaces the retry policy for list and call requests.
func WithRetry(b resilience.Backoff) ClientOption {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithToolCacheTTL sets how long a tool listing is reused. Zero disables caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client talks to one remote MCP server.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	backoff   resilience.Backoff
	cacheTTL  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an already initialized mcp-go client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	backoff := resilience.DefaultBackoff()
	backoff.Initial = 200 * time.Millisecond
	out := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		backoff:   backoff,
		cacheTTL:  defaultCacheTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// DialStdio spawns command and performs the protocol handshake over its
// stdin/stdout. env entries have the form KEY=VALUE.
func DialStdio(ctx context.Context, command string, args, env []string, opts ...ClientOption) (*Client, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, "mcp: spawn "+command, err)
	}
	return connect(ctx, c, opts...)
}

// DialHTTP connects to a Streamable HTTP endpoint.
func DialHTTP(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, "mcp: dial "+url, err)
	}
	return connect(ctx, c, opts...)
}

// DialInProcess connects to a Server in the same process.
func DialInProcess(ctx context.Context, srv *Server, opts ...ClientOption) (*Client, error) {
	c, err := client.NewInProcessClient(srv.MCPServer())
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "mcp: in-process client", err)
	}
	return connect(ctx, c, opts...)
}

func connect(ctx context.Context, c *client.Client, opts ...ClientOption) (*Client, error) {
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, errors.New(errors.CodeUnavailable, "mcp: start transport", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(initCtx, req); err != nil {
		_ = c.Close()
		return nil, errors.New(errors.CodeUnavailable, "mcp: initialize", err)
	}
	return NewClient(c, opts...), nil
}

// ListTools retrieves the tools advertised by the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	res, err := resilience.Retry(ctx, c.backoff, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(res.Tools)
	return res.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return resilience.Retry(ctx, c.backoff, func(ctx context.Context) (*mcp.CallToolResult, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.CallTool(ctx, req)
	})
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || c.now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = c.now().Add(c.cacheTTL)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
