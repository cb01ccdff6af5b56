package lookup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolName is the MCP tool registered by RegisterMCP.
const ToolName = "ifsc_lookup"

type lookupReq struct {
	Code string `json:"code"`
}

// RegisterMCP registers the ifsc_lookup tool on srv.
func (idx *Index) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        ToolName,
		Description: "Look up bank branches by IFSC code (case-insensitive exact match). Returns every matching branch record.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code": map[string]any{"type": "string", "description": "11-character IFSC code, e.g. HDFC0000060"},
			},
			"required": []string{"code"},
		},
	}

	srv.AddTool(tool, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r lookupReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		matches, err := idx.Find(r.Code)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(findResponse{Code: r.Code, Matches: matches})
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// NewMCPServer returns a server exposing idx as the ifsc_lookup tool.
func NewMCPServer(idx *Index, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "ifscdir", Version: version}, nil)
	idx.RegisterMCP(srv)
	return srv
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
