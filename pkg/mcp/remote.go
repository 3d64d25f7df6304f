// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/schema"
	"github.com/jllopis/scribe/pkg/tool"
)

// ToolCaller executes a tool on a remote server.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Definition turns a remote MCP tool into a registry definition. The
// registry validates input against the advertised schema and the call is
// forwarded to caller under the remote name.
func Definition(remote mcp.Tool, name string, caller ToolCaller) (tool.Definition, error) {
	if remote.Name == "" {
		return tool.Definition{}, fmt.Errorf("mcp: remote tool name is required")
	}
	if caller == nil {
		return tool.Definition{}, fmt.Errorf("mcp: tool caller is required")
	}
	if name == "" {
		name = remote.Name
	}
	root, err := inputSchema(remote)
	if err != nil {
		return tool.Definition{}, fmt.Errorf("mcp: tool %q: %w", remote.Name, err)
	}
	return tool.Definition{
		Name:        name,
		Description: remote.Description,
		Schema:      schema.FromJSONSchema(root),
		Execute: func(ctx context.Context, input any) (any, error) {
			args, _ := input.(map[string]any)
			if args == nil {
				args = map[string]any{}
			}
			res, err := caller.CallTool(ctx, remote.Name, args)
			if err != nil {
				return nil, err
			}
			return outputOf(res)
		},
	}, nil
}

// Import registers every tool listed by c into registry. Names are prefixed
// with prefix and an underscore when prefix is not empty. It returns the
// registered names.
func Import(ctx context.Context, c *Client, registry *tool.Registry, prefix string) ([]string, error) {
	remotes, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(remotes))
	for _, remote := range remotes {
		name := remote.Name
		if prefix != "" {
			name = prefix + "_" + remote.Name
		}
		def, err := Definition(remote, name, c)
		if err != nil {
			return names, err
		}
		if err := registry.Register(def); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func inputSchema(remote mcp.Tool) (*jsonschema.Schema, error) {
	var data []byte
	if len(remote.RawInputSchema) > 0 {
		data = remote.RawInputSchema
	} else {
		encoded, err := json.Marshal(remote.InputSchema)
		if err != nil {
			return nil, err
		}
		data = encoded
	}
	root := &jsonschema.Schema{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("invalid input schema: %w", err)
	}
	if root.Type == "" {
		root.Type = "object"
	}
	return root, nil
}

func outputOf(res *mcp.CallToolResult) (any, error) {
	if res == nil {
		return nil, fmt.Errorf("mcp: empty tool result")
	}
	text := textOf(res.Content)
	if res.IsError {
		return nil, errors.New(errors.CodeToolExecutionFailed, "remote tool failed: "+text, nil)
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

func textOf(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
