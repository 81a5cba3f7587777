package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Actionable errors are returned as successful tool results carrying this
// payload so the calling agent can see the details and adjust, instead of
// the message being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors the agent can fix (invalid parameters,
// resource not found). System failures (database down, internal errors)
// should still be returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with additional context
// the agent may need to correct the call.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// inputErrorPatterns are substrings marking an error as caused by the
// caller's input rather than a server failure.
var inputErrorPatterns = []string{
	"is required",
	"cannot be empty",
	"invalid",
	"already exists",
	"not found",
}

// HandleServiceError converts a service-layer error into a tool result when
// the error is actionable by the calling agent, and passes it through as a
// Go error otherwise. fallbackCode labels input errors that do not map to a
// more specific code.
func HandleServiceError(err error, fallbackCode string) (*mcp.CallToolResult, error) {
	if err == nil {
		return nil, nil
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error()), nil
	case errors.Is(err, apperrors.ErrUnsafeInput):
		return NewErrorResult("unsafe_input", err.Error()), nil
	case errors.Is(err, apperrors.ErrConflict):
		return NewErrorResult("conflict", err.Error()), nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return NewErrorResult("unique_violation", pgErr.Message), nil
		case "23503":
			return NewErrorResult("foreign_key_violation", pgErr.Message), nil
		case "23502":
			return NewErrorResult("not_null_violation", pgErr.Message), nil
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range inputErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return NewErrorResult(fallbackCode, err.Error()), nil
		}
	}

	return nil, err
}
