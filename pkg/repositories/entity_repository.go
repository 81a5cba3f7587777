package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

// EntityRepository provides data access for knowledge graph entities.
//
// Embeddings are write-only: Create stores them as text literals the server
// coerces to the live column type (VECTOR or the JSONB placeholder), and no
// query reads them back.
type EntityRepository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error)
	GetByName(ctx context.Context, name, entityType string) (*models.Entity, error)
	List(ctx context.Context, entityType string, limit int) ([]*models.Entity, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SearchKeyword matches the query against entity names and summaries.
	SearchKeyword(ctx context.Context, query string, limit int) ([]*models.Entity, error)
	// SearchSemantic ranks entities by cosine distance to the query embedding.
	// Only valid when the embedding column is a live VECTOR column.
	SearchSemantic(ctx context.Context, embedding []float32, limit int) ([]*models.SearchResult, error)
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) Create(ctx context.Context, entity *models.Entity) error {
	now := time.Now()
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	entity.CreatedAt = now
	entity.UpdatedAt = now

	metadataJSON, err := json.Marshal(entity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if entity.Metadata == nil {
		metadataJSON = nil
	}

	var embedding any
	if len(entity.Embedding) > 0 {
		embedding = models.VectorLiteral(entity.Embedding)
	}

	query := `
		INSERT INTO entities (id, name, entity_type, summary, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		entity.ID, entity.Name, entity.EntityType, entity.Summary, embedding,
		metadataJSON, entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	return nil
}

func (r *entityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	query := entitySelect + ` WHERE id = $1`

	entity, err := scanEntity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return entity, nil
}

func (r *entityRepository) GetByName(ctx context.Context, name, entityType string) (*models.Entity, error) {
	query := entitySelect + ` WHERE name = $1 AND entity_type = $2`

	entity, err := scanEntity(r.db.QueryRow(ctx, query, name, entityType))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity by name: %w", err)
	}

	return entity, nil
}

func (r *entityRepository) List(ctx context.Context, entityType string, limit int) ([]*models.Entity, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows pgx.Rows
	var err error
	if entityType != "" {
		rows, err = r.db.Query(ctx, entitySelect+` WHERE entity_type = $1 ORDER BY name LIMIT $2`, entityType, limit)
	} else {
		rows, err = r.db.Query(ctx, entitySelect+` ORDER BY name LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

func (r *entityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM entities WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *entityRepository) SearchKeyword(ctx context.Context, query string, limit int) ([]*models.Entity, error) {
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := entitySelect + `
		WHERE name ILIKE '%' || $1 || '%' OR summary ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2`

	rows, err := r.db.Query(ctx, sqlQuery, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

func (r *entityRepository) SearchSemantic(ctx context.Context, embedding []float32, limit int) ([]*models.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, name, entity_type, summary, metadata, created_at, updated_at,
			embedding <=> $1 AS distance
		FROM entities
		WHERE embedding IS NOT NULL
		ORDER BY distance
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, models.VectorLiteral(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities by embedding: %w", err)
	}
	defer rows.Close()

	results := make([]*models.SearchResult, 0)
	for rows.Next() {
		var entity models.Entity
		var summary *string
		var metadataJSON []byte
		var distance float64

		err := rows.Scan(
			&entity.ID, &entity.Name, &entity.EntityType, &summary, &metadataJSON,
			&entity.CreatedAt, &entity.UpdatedAt, &distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		if summary != nil {
			entity.Summary = *summary
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entity.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		score := distance
		results = append(results, &models.SearchResult{
			Entity:    &entity,
			MatchType: models.MatchTypeSemantic,
			Score:     &score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return results, nil
}

const entitySelect = `
	SELECT id, name, entity_type, summary, metadata, created_at, updated_at
	FROM entities`

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var entity models.Entity
	var summary *string
	var metadataJSON []byte

	err := row.Scan(
		&entity.ID, &entity.Name, &entity.EntityType, &summary, &metadataJSON,
		&entity.CreatedAt, &entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if summary != nil {
		entity.Summary = *summary
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entity.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &entity, nil
}

func collectEntities(rows pgx.Rows) ([]*models.Entity, error) {
	entities := make([]*models.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	return entities, nil
}
