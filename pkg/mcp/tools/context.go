package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// ContextToolDeps contains dependencies for the context retrieval tool.
type ContextToolDeps struct {
	Context services.ContextService
	Logger  *zap.Logger
}

// RegisterContextTool adds the get_context tool for retrieval-backed briefings.
func RegisterContextTool(s *server.MCPServer, deps *ContextToolDeps) {
	tool := mcp.NewTool(
		"get_context",
		mcp.WithDescription(
			"Retrieve a bounded context block for a topic: the best-matching entities with their "+
				"recent observations, plus semantically similar document excerpts when vector search "+
				"is available. Use this at the start of a task to load what other agents already "+
				"know, instead of issuing several search_graph calls. The response is structured "+
				"JSON; pass render=true to get the same content as prompt-ready plain text.",
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Topic to retrieve context for (e.g. 'billing settlement pipeline')"),
		),
		mcp.WithNumber(
			"max_entities",
			mcp.Description("Max entities to include (default: 5)"),
		),
		mcp.WithBoolean(
			"render",
			mcp.Description("Return plain text suitable for direct prompt inclusion instead of JSON"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		query = trimString(query)
		if query == "" {
			return NewErrorResult("invalid_parameters", "parameter 'query' cannot be empty"), nil
		}

		maxEntities, _ := getOptionalInt(req, "max_entities")

		if getOptionalBool(req, "render") {
			rendered, err := deps.Context.Render(ctx, query, maxEntities)
			if err != nil {
				return HandleServiceError(err, "get_context_failed")
			}
			if rendered == "" {
				rendered = "No graph context found for this query."
			}
			return mcp.NewToolResultText(rendered), nil
		}

		block, err := deps.Context.Retrieve(ctx, query, maxEntities)
		if err != nil {
			return HandleServiceError(err, "get_context_failed")
		}

		jsonResult, err := json.Marshal(block)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
