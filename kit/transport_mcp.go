package kit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Endpoint is a typed operation exposed over MCP: Req in, any JSON-encodable
// value out.
type Endpoint[Req any] func(ctx context.Context, req *Req) (any, error)

// RegisterMCPTool registers endpoint as an MCP tool. Arguments are decoded
// into a fresh Req; the result is returned as one JSON text content. Endpoint
// errors become tool errors, never protocol errors.
func RegisterMCPTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint[Req]) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		resp, err := endpoint(WithOrigin(ctx, "mcp"), &r)
		if err != nil {
			return toolError(errors.New(err.Error())), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// InputSchema builds a JSON Schema object with type "object".
func InputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
