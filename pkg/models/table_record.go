package models

import (
	"time"

	"github.com/google/uuid"
)

// TableRecord is the persistent registration of one managed table: which
// model declared it and which schema version that model currently declares.
// Created the first time the migration pipeline encounters a table and
// updated on every subsequent run; never deleted during normal operation.
type TableRecord struct {
	ID            uuid.UUID `json:"id"`
	TableName     string    `json:"table_name"`
	ModelName     string    `json:"model_name"`
	Description   string    `json:"description,omitempty"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableStatus is the per-table migration outcome: one row per TableRecord,
// created together with it and mutated exclusively by the migration pipeline
// and the row-count refresher.
type TableStatus struct {
	ID                  uuid.UUID  `json:"id"`
	TableRecordID       uuid.UUID  `json:"table_record_id"`
	DBVersion           int        `json:"db_version"`
	LastAppliedAt       *time.Time `json:"last_applied_at,omitempty"`
	LastVerifiedAt      *time.Time `json:"last_verified_at,omitempty"`
	LastDataMigratedAt  *time.Time `json:"last_data_migrated_at,omitempty"`
	LastChangeCount     int        `json:"last_change_count"`
	Status              string     `json:"status"`
	StatusMessage       string     `json:"status_message,omitempty"`
	RowCount            int64      `json:"row_count"`
	RowCountRefreshedAt *time.Time `json:"row_count_refreshed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Status values for TableStatus. A status row starts at pending, moves to
// applied when DDL runs (or the table is created), verified when a run finds
// nothing to change, and migrated when the model's data fixup succeeds.
// Error is reachable from any step.
const (
	TableStatusPending  = "pending"
	TableStatusApplied  = "applied"
	TableStatusVerified = "verified"
	TableStatusMigrated = "migrated"
	TableStatusError    = "error"
)

// TableRecordWithStatus joins a TableRecord to its status row for read-only
// views (REST and MCP schema status surfaces).
type TableRecordWithStatus struct {
	Record TableRecord `json:"record"`
	Status TableStatus `json:"status"`
}
