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

// AgentRepository provides data access for registered agents.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	GetByName(ctx context.Context, name string) (*models.Agent, error)
	List(ctx context.Context) ([]*models.Agent, error)
}

type agentRepository struct {
	db *database.DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *database.DB) AgentRepository {
	return &agentRepository{db: db}
}

var _ AgentRepository = (*agentRepository)(nil)

func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	now := time.Now()
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.Role == "" {
		agent.Role = "collaborator"
	}
	agent.CreatedAt = now
	agent.UpdatedAt = now

	metadataJSON, err := json.Marshal(agent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if agent.Metadata == nil {
		metadataJSON = nil
	}

	query := `
		INSERT INTO agents (id, name, role, description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		agent.ID, agent.Name, agent.Role, agent.Description, metadataJSON,
		agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	query := agentSelect + ` WHERE id = $1`

	agent, err := scanAgent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

func (r *agentRepository) GetByName(ctx context.Context, name string) (*models.Agent, error) {
	query := agentSelect + ` WHERE name = $1`

	agent, err := scanAgent(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent by name: %w", err)
	}

	return agent, nil
}

func (r *agentRepository) List(ctx context.Context) ([]*models.Agent, error) {
	query := agentSelect + ` ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]*models.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agents: %w", err)
	}

	return agents, nil
}

const agentSelect = `
	SELECT id, name, role, description, metadata, created_at, updated_at
	FROM agents`

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var agent models.Agent
	var description *string
	var metadataJSON []byte

	err := row.Scan(
		&agent.ID, &agent.Name, &agent.Role, &description, &metadataJSON,
		&agent.CreatedAt, &agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description != nil {
		agent.Description = *description
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &agent.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &agent, nil
}
