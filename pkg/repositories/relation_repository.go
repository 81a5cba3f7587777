package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

// RelationRepository provides data access for graph edges.
type RelationRepository interface {
	Create(ctx context.Context, relation *models.Relation) error
	List(ctx context.Context, limit int) ([]*models.Relation, error)
	// ListForEntity returns every edge touching the entity, in either
	// direction, newest first.
	ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Relation, error)
	// DeleteForEntity removes every edge touching the entity. Called before
	// an entity delete because the foreign keys do not cascade.
	DeleteForEntity(ctx context.Context, entityID uuid.UUID) error
}

type relationRepository struct {
	db *database.DB
}

// NewRelationRepository creates a new RelationRepository.
func NewRelationRepository(db *database.DB) RelationRepository {
	return &relationRepository{db: db}
}

var _ RelationRepository = (*relationRepository)(nil)

func (r *relationRepository) Create(ctx context.Context, relation *models.Relation) error {
	now := time.Now()
	if relation.ID == uuid.Nil {
		relation.ID = uuid.New()
	}
	relation.CreatedAt = now
	relation.UpdatedAt = now

	metadataJSON, err := json.Marshal(relation.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if relation.Metadata == nil {
		metadataJSON = nil
	}

	query := `
		INSERT INTO relations (id, from_entity_id, to_entity_id, relation_type, weight, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		relation.ID, relation.FromEntityID, relation.ToEntityID, relation.RelationType,
		relation.Weight, metadataJSON, relation.CreatedAt, relation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create relation: %w", err)
	}

	return nil
}

func (r *relationRepository) List(ctx context.Context, limit int) ([]*models.Relation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := relationSelect + ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	return collectRelations(rows)
}

func (r *relationRepository) ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Relation, error) {
	query := relationSelect + `
		WHERE from_entity_id = $1 OR to_entity_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations for entity: %w", err)
	}
	defer rows.Close()

	return collectRelations(rows)
}

func (r *relationRepository) DeleteForEntity(ctx context.Context, entityID uuid.UUID) error {
	query := `DELETE FROM relations WHERE from_entity_id = $1 OR to_entity_id = $1`

	_, err := r.db.Exec(ctx, query, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete relations for entity: %w", err)
	}

	return nil
}

const relationSelect = `
	SELECT id, from_entity_id, to_entity_id, relation_type, weight, metadata, created_at, updated_at
	FROM relations`

func collectRelations(rows pgx.Rows) ([]*models.Relation, error) {
	relations := make([]*models.Relation, 0)
	for rows.Next() {
		var relation models.Relation
		var metadataJSON []byte

		err := rows.Scan(
			&relation.ID, &relation.FromEntityID, &relation.ToEntityID, &relation.RelationType,
			&relation.Weight, &metadataJSON, &relation.CreatedAt, &relation.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &relation.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		relations = append(relations, &relation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relations: %w", err)
	}

	return relations, nil
}
