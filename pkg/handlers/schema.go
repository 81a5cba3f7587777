package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/migrate"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
)

// MigrationRunner triggers a migration pipeline run. Implemented by
// migrate.Manager; declared here so the handler can be tested without a
// database.
type MigrationRunner interface {
	Run(ctx context.Context, opts migrate.Options) (*migrate.Summary, error)
}

// RunMigrationRequest for POST /api/schema/migrate
type RunMigrationRequest struct {
	AllowColumnRemoval bool `json:"allow_column_removal,omitempty"`
}

// TableStatusResponse is one managed table's migration state.
type TableStatusResponse struct {
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

// SchemaTablesResponse for GET /api/schema/tables
type SchemaTablesResponse struct {
	Tables []TableStatusResponse `json:"tables"`
	Total  int                   `json:"total"`
}

// SchemaHandler exposes the migration registry and pipeline over HTTP.
type SchemaHandler struct {
	registry repositories.RegistryRepository
	runner   MigrationRunner
	logger   *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(registry repositories.RegistryRepository, runner MigrationRunner, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{registry: registry, runner: runner, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema/tables", h.ListTables)
	mux.HandleFunc("POST /api/schema/migrate", h.RunMigration)
}

// ListTables handles GET /api/schema/tables
// Read-only view of the per-table migration state machine.
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.ListRecordsWithStatus(r.Context())
	if err != nil {
		h.logger.Error("Failed to list table records", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_tables_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	tables := make([]TableStatusResponse, 0, len(records))
	for _, record := range records {
		tables = append(tables, toTableStatusResponse(record))
	}

	response := SchemaTablesResponse{Tables: tables, Total: len(tables)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RunMigration handles POST /api/schema/migrate
// Triggers a pipeline run; all status mutation happens inside the pipeline.
// Per-table failures are reported in the summary without failing the request.
func (h *SchemaHandler) RunMigration(w http.ResponseWriter, r *http.Request) {
	var req RunMigrationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	summary, err := h.runner.Run(r.Context(), migrate.Options{
		AllowColumnRemoval: req.AllowColumnRemoval,
	})
	if err != nil {
		h.logger.Error("Migration run failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "migration_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.logger.Info("Migration run completed",
		zap.Int("created", summary.Created),
		zap.Int("migrated", summary.Migrated),
		zap.Int("verified", summary.Verified),
		zap.Int("errors", len(summary.Errors)))

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func toTableStatusResponse(record *models.TableRecordWithStatus) TableStatusResponse {
	return TableStatusResponse{
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
	}
}
