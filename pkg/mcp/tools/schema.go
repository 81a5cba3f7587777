package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
)

// SchemaToolDeps contains dependencies for schema status tools.
type SchemaToolDeps struct {
	Registry repositories.RegistryRepository
	Logger   *zap.Logger
}

type tableStatusItem struct {
	TableName          string     `json:"table_name"`
	ModelName          string     `json:"model_name"`
	SchemaVersion      int        `json:"schema_version"`
	DBVersion          int        `json:"db_version"`
	Status             string     `json:"status"`
	StatusMessage      string     `json:"status_message,omitempty"`
	LastAppliedAt      *time.Time `json:"last_applied_at,omitempty"`
	LastVerifiedAt     *time.Time `json:"last_verified_at,omitempty"`
	LastDataMigratedAt *time.Time `json:"last_data_migrated_at,omitempty"`
	LastChangeCount    int        `json:"last_change_count"`
	RowCount           int64      `json:"row_count"`
}

type readSchemaStatusResponse struct {
	Tables []tableStatusItem `json:"tables"`
	Count  int               `json:"count"`
}

// RegisterSchemaStatusTool adds the read_schema_status tool exposing the
// migration state machine.
func RegisterSchemaStatusTool(s *server.MCPServer, deps *SchemaToolDeps) {
	tool := mcp.NewTool(
		"read_schema_status",
		mcp.WithDescription(
			"Read the migration status of every managed table: schema version vs database version, "+
				"the last outcome (pending, applied, verified, migrated, error), when changes were last "+
				"applied, and cached row counts. Status is maintained by the migration pipeline; this "+
				"tool only reads it. Use it to check whether the store is fully migrated before "+
				"relying on recently added columns, or to diagnose a table stuck in 'error'.",
		),
		mcp.WithString(
			"table",
			mcp.Description("Optional - return only this table's status"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := deps.Registry.ListRecordsWithStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list table status: %w", err)
		}

		tableFilter := trimString(getOptionalString(req, "table"))

		response := readSchemaStatusResponse{Tables: make([]tableStatusItem, 0, len(records))}
		for _, record := range records {
			if tableFilter != "" && record.Record.TableName != tableFilter {
				continue
			}
			response.Tables = append(response.Tables, tableStatusItem{
				TableName:          record.Record.TableName,
				ModelName:          record.Record.ModelName,
				SchemaVersion:      record.Record.SchemaVersion,
				DBVersion:          record.Status.DBVersion,
				Status:             record.Status.Status,
				StatusMessage:      record.Status.StatusMessage,
				LastAppliedAt:      record.Status.LastAppliedAt,
				LastVerifiedAt:     record.Status.LastVerifiedAt,
				LastDataMigratedAt: record.Status.LastDataMigratedAt,
				LastChangeCount:    record.Status.LastChangeCount,
				RowCount:           record.Status.RowCount,
			})
		}
		response.Count = len(response.Tables)

		if tableFilter != "" && response.Count == 0 {
			return NewErrorResult("not_found",
				fmt.Sprintf("no managed table named %q", tableFilter)), nil
		}

		jsonResult, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
