package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

// ObservationRepository provides data access for recorded observations.
type ObservationRepository interface {
	Create(ctx context.Context, observation *models.Observation) error
	ListByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.Observation, error)
	// DeleteForEntity removes every observation about the entity. Called
	// before an entity delete because the foreign keys do not cascade.
	DeleteForEntity(ctx context.Context, entityID uuid.UUID) error
}

type observationRepository struct {
	db *database.DB
}

// NewObservationRepository creates a new ObservationRepository.
func NewObservationRepository(db *database.DB) ObservationRepository {
	return &observationRepository{db: db}
}

var _ ObservationRepository = (*observationRepository)(nil)

func (r *observationRepository) Create(ctx context.Context, observation *models.Observation) error {
	now := time.Now()
	if observation.ID == uuid.Nil {
		observation.ID = uuid.New()
	}
	observation.CreatedAt = now
	observation.UpdatedAt = now

	var embedding any
	if len(observation.Embedding) > 0 {
		embedding = models.VectorLiteral(observation.Embedding)
	}

	var source any
	if observation.Source != "" {
		source = observation.Source
	}

	query := `
		INSERT INTO observations (id, entity_id, agent_id, content, embedding, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		observation.ID, observation.EntityID, observation.AgentID, observation.Content,
		embedding, source, observation.CreatedAt, observation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}

	return nil
}

func (r *observationRepository) ListByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.Observation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, entity_id, agent_id, content, source, created_at, updated_at
		FROM observations
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	observations := make([]*models.Observation, 0)
	for rows.Next() {
		observation, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, observation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}

	return observations, nil
}

func (r *observationRepository) DeleteForEntity(ctx context.Context, entityID uuid.UUID) error {
	query := `DELETE FROM observations WHERE entity_id = $1`

	_, err := r.db.Exec(ctx, query, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete observations for entity: %w", err)
	}

	return nil
}

func scanObservation(row pgx.Row) (*models.Observation, error) {
	var observation models.Observation
	var source *string

	err := row.Scan(
		&observation.ID, &observation.EntityID, &observation.AgentID, &observation.Content,
		&source, &observation.CreatedAt, &observation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if source != nil {
		observation.Source = *source
	}

	return &observation, nil
}
