// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the tool registry over the Model Context Protocol and
// imports tools advertised by remote MCP servers.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/scribe/pkg/tool"
)

// Server advertises every tool of a registry to MCP clients.
type Server struct {
	mcpServer *server.MCPServer
	registry  *tool.Registry
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger used for invocation failures.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server and registers the current contents of
// registry. Tools registered later are picked up with Sync.
func NewServer(name, version string, registry *tool.Registry, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Sync()
	return s
}

// Sync advertises every registry tool, replacing earlier advertisements
// with the same name.
func (s *Server) Sync() {
	if s.registry == nil {
		return
	}
	tools := make([]server.ServerTool, 0)
	for _, def := range s.registry.List() {
		tools = append(tools, server.ServerTool{
			Tool:    Advertise(def),
			Handler: s.handler(def.Name),
		})
	}
	s.mcpServer.SetTools(tools...)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves the protocol on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns a Streamable HTTP handler for the server.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// Advertise converts a tool definition into its MCP description, keeping
// the reflected JSON Schema as the input schema.
func Advertise(def tool.Definition) mcp.Tool {
	raw := json.RawMessage(`{"type":"object"}`)
	if def.Schema != nil {
		raw = def.Schema.JSON()
	}
	return mcp.NewToolWithRawSchema(def.Name, def.Description, raw)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := s.registry.Invoke(ctx, name, request.GetArguments())
		if !res.OK() {
			s.logger.WarnContext(ctx, "mcp tool call failed",
				slog.String("tool", name),
				slog.String("code", string(res.Err.Code)),
			)
			data, err := json.Marshal(res.Err)
			if err != nil {
				return mcp.NewToolResultError(res.Err.Error()), nil
			}
			return mcp.NewToolResultError(string(data)), nil
		}
		return resultOf(res.Output)
	}
}

func resultOf(output any) (*mcp.CallToolResult, error) {
	if text, ok := output.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	data, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("mcp: encode tool output: %w", err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.TextContent{Type: "text", Text: string(data)}},
		StructuredContent: output,
	}, nil
}
