// Package tools provides MCP tool implementations for mindmesh-engine.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// trimString removes leading and trailing whitespace from a string.
// This is a common helper used across MCP tool parameter validation.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return val
}

// getOptionalInt extracts an optional numeric argument from the request.
// JSON numbers arrive as float64.
func getOptionalInt(req mcp.CallToolRequest, key string) (int, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	if !ok {
		return 0, false
	}
	return int(val), true
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) bool {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return false
	}
	val, ok := args[key].(bool)
	if !ok {
		return false
	}
	return val
}

// extractArrayParam pulls an array argument from the request arguments.
// Clients sometimes send arrays as stringified JSON instead of native JSON
// arrays; those are parsed with a warning so the call still succeeds. An
// absent key returns (nil, nil).
func extractArrayParam(args map[string]any, key string, logger *zap.Logger) ([]any, error) {
	raw, present := args[key]
	if !present || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []any:
		return v, nil
	case string:
		var parsed []any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf(
				"parameter %q could not be parsed as an array: send it as a native JSON array, not a string", key)
		}
		if logger != nil {
			logger.Warn("Array parameter arrived as stringified JSON",
				zap.String("param", key))
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("parameter %q must be an array, got %T", key, raw)
	}
}
