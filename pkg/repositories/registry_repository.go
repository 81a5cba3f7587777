package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

// RegistryRepository provides data access for the schema registry tables
// that track every managed table and its migration status.
type RegistryRepository interface {
	// UpsertRecord inserts or updates the record for a table and guarantees
	// its status row exists (created as pending). The record's ID and
	// CreatedAt reflect the stored row on return.
	UpsertRecord(ctx context.Context, record *models.TableRecord) error
	GetRecordByTableName(ctx context.Context, tableName string) (*models.TableRecord, error)
	ListRecords(ctx context.Context) ([]*models.TableRecord, error)
	ListRecordsWithStatus(ctx context.Context) ([]*models.TableRecordWithStatus, error)
	GetStatus(ctx context.Context, tableRecordID uuid.UUID) (*models.TableStatus, error)

	// MarkApplied records structural changes: the new database version and
	// how many statements were applied. Clears any previous status message.
	MarkApplied(ctx context.Context, tableRecordID uuid.UUID, dbVersion, changeCount int) error
	// MarkVerified records a run that detected no changes.
	MarkVerified(ctx context.Context, tableRecordID uuid.UUID) error
	// MarkDataMigrated records a successful post-migration data fixup.
	MarkDataMigrated(ctx context.Context, tableRecordID uuid.UUID) error
	// MarkError flags the table's run as failed with a reason.
	MarkError(ctx context.Context, tableRecordID uuid.UUID, message string) error
	// SetStatusMessage records a message without touching the status, used
	// for non-fatal fixup failures where the structural state stands.
	SetStatusMessage(ctx context.Context, tableRecordID uuid.UUID, message string) error
	// UpdateRowCount refreshes the cached row count for a managed table.
	UpdateRowCount(ctx context.Context, tableName string, count int64) error
}

type registryRepository struct {
	db *database.DB
}

// NewRegistryRepository creates a new RegistryRepository.
func NewRegistryRepository(db *database.DB) RegistryRepository {
	return &registryRepository{db: db}
}

var _ RegistryRepository = (*registryRepository)(nil)

func (r *registryRepository) UpsertRecord(ctx context.Context, record *models.TableRecord) error {
	now := time.Now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO engine_table_records (id, table_name, model_name, description, schema_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (table_name) DO UPDATE SET
			model_name = EXCLUDED.model_name,
			description = EXCLUDED.description,
			schema_version = EXCLUDED.schema_version,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		record.ID, record.TableName, record.ModelName, record.Description,
		record.SchemaVersion, now,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert table record for %s: %w", record.TableName, err)
	}

	statusQuery := `
		INSERT INTO engine_table_status (id, table_record_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (table_record_id) DO NOTHING`

	_, err = r.db.Exec(ctx, statusQuery, uuid.New(), record.ID, models.TableStatusPending, now)
	if err != nil {
		return fmt.Errorf("failed to ensure status row for %s: %w", record.TableName, err)
	}

	return nil
}

func (r *registryRepository) GetRecordByTableName(ctx context.Context, tableName string) (*models.TableRecord, error) {
	query := `
		SELECT id, table_name, model_name, description, schema_version, created_at, updated_at
		FROM engine_table_records
		WHERE table_name = $1`

	var record models.TableRecord
	err := r.db.QueryRow(ctx, query, tableName).Scan(
		&record.ID, &record.TableName, &record.ModelName, &record.Description,
		&record.SchemaVersion, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get table record: %w", err)
	}

	return &record, nil
}

func (r *registryRepository) ListRecords(ctx context.Context) ([]*models.TableRecord, error) {
	query := `
		SELECT id, table_name, model_name, description, schema_version, created_at, updated_at
		FROM engine_table_records
		ORDER BY table_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list table records: %w", err)
	}
	defer rows.Close()

	var records []*models.TableRecord
	for rows.Next() {
		var record models.TableRecord
		if err := rows.Scan(
			&record.ID, &record.TableName, &record.ModelName, &record.Description,
			&record.SchemaVersion, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan table record: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table records: %w", err)
	}

	return records, nil
}

func (r *registryRepository) ListRecordsWithStatus(ctx context.Context) ([]*models.TableRecordWithStatus, error) {
	query := `
		SELECT
			tr.id, tr.table_name, tr.model_name, tr.description, tr.schema_version, tr.created_at, tr.updated_at,
			ts.id, ts.table_record_id, ts.db_version, ts.last_applied_at, ts.last_verified_at,
			ts.last_data_migrated_at, ts.last_change_count, ts.status, ts.status_message,
			ts.row_count, ts.row_count_refreshed_at, ts.created_at, ts.updated_at
		FROM engine_table_records tr
		JOIN engine_table_status ts ON ts.table_record_id = tr.id
		ORDER BY tr.table_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list table records with status: %w", err)
	}
	defer rows.Close()

	var results []*models.TableRecordWithStatus
	for rows.Next() {
		var rec models.TableRecordWithStatus
		if err := rows.Scan(
			&rec.Record.ID, &rec.Record.TableName, &rec.Record.ModelName, &rec.Record.Description,
			&rec.Record.SchemaVersion, &rec.Record.CreatedAt, &rec.Record.UpdatedAt,
			&rec.Status.ID, &rec.Status.TableRecordID, &rec.Status.DBVersion, &rec.Status.LastAppliedAt,
			&rec.Status.LastVerifiedAt, &rec.Status.LastDataMigratedAt, &rec.Status.LastChangeCount,
			&rec.Status.Status, &rec.Status.StatusMessage, &rec.Status.RowCount,
			&rec.Status.RowCountRefreshedAt, &rec.Status.CreatedAt, &rec.Status.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan table record with status: %w", err)
		}
		results = append(results, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table records with status: %w", err)
	}

	return results, nil
}

func (r *registryRepository) GetStatus(ctx context.Context, tableRecordID uuid.UUID) (*models.TableStatus, error) {
	query := `
		SELECT id, table_record_id, db_version, last_applied_at, last_verified_at,
			last_data_migrated_at, last_change_count, status, status_message,
			row_count, row_count_refreshed_at, created_at, updated_at
		FROM engine_table_status
		WHERE table_record_id = $1`

	var status models.TableStatus
	err := r.db.QueryRow(ctx, query, tableRecordID).Scan(
		&status.ID, &status.TableRecordID, &status.DBVersion, &status.LastAppliedAt,
		&status.LastVerifiedAt, &status.LastDataMigratedAt, &status.LastChangeCount,
		&status.Status, &status.StatusMessage, &status.RowCount,
		&status.RowCountRefreshedAt, &status.CreatedAt, &status.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get table status: %w", err)
	}

	return &status, nil
}

func (r *registryRepository) MarkApplied(ctx context.Context, tableRecordID uuid.UUID, dbVersion, changeCount int) error {
	query := `
		UPDATE engine_table_status
		SET status = $2, db_version = $3, last_change_count = $4,
			last_applied_at = $5, status_message = NULL, updated_at = $5
		WHERE table_record_id = $1`

	return r.updateStatus(ctx, query, tableRecordID, models.TableStatusApplied, dbVersion, changeCount, time.Now())
}

func (r *registryRepository) MarkVerified(ctx context.Context, tableRecordID uuid.UUID) error {
	query := `
		UPDATE engine_table_status
		SET status = $2, last_verified_at = $3, status_message = NULL, updated_at = $3
		WHERE table_record_id = $1`

	return r.updateStatus(ctx, query, tableRecordID, models.TableStatusVerified, time.Now())
}

func (r *registryRepository) MarkDataMigrated(ctx context.Context, tableRecordID uuid.UUID) error {
	query := `
		UPDATE engine_table_status
		SET status = $2, last_data_migrated_at = $3, updated_at = $3
		WHERE table_record_id = $1`

	return r.updateStatus(ctx, query, tableRecordID, models.TableStatusMigrated, time.Now())
}

func (r *registryRepository) MarkError(ctx context.Context, tableRecordID uuid.UUID, message string) error {
	query := `
		UPDATE engine_table_status
		SET status = $2, status_message = $3, updated_at = $4
		WHERE table_record_id = $1`

	return r.updateStatus(ctx, query, tableRecordID, models.TableStatusError, message, time.Now())
}

func (r *registryRepository) SetStatusMessage(ctx context.Context, tableRecordID uuid.UUID, message string) error {
	query := `
		UPDATE engine_table_status
		SET status_message = $2, updated_at = $3
		WHERE table_record_id = $1`

	return r.updateStatus(ctx, query, tableRecordID, message, time.Now())
}

func (r *registryRepository) UpdateRowCount(ctx context.Context, tableName string, count int64) error {
	query := `
		UPDATE engine_table_status ts
		SET row_count = $2, row_count_refreshed_at = $3, updated_at = $3
		FROM engine_table_records tr
		WHERE ts.table_record_id = tr.id AND tr.table_name = $1`

	tag, err := r.db.Exec(ctx, query, tableName, count, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update row count for %s: %w", tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// updateStatus executes a status mutation and maps a missing row to
// apperrors.ErrNotFound so callers can distinguish it from database faults.
func (r *registryRepository) updateStatus(ctx context.Context, query string, tableRecordID uuid.UUID, args ...any) error {
	params := append([]any{tableRecordID}, args...)
	tag, err := r.db.Exec(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("failed to update table status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
