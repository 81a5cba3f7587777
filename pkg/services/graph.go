package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/sql"
)

// GraphService provides operations over the knowledge graph: agents,
// entities, relations and observations.
type GraphService interface {
	// CreateAgent registers a new agent.
	CreateAgent(ctx context.Context, agent *models.Agent) error

	// GetAgent returns an agent by ID.
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)

	// ListAgents returns all registered agents.
	ListAgents(ctx context.Context) ([]*models.Agent, error)

	// CreateEntity creates a single entity, embedding its name and summary
	// when an embedding client is configured.
	CreateEntity(ctx context.Context, entity *models.Entity) error

	// CreateEntities creates a batch of entities, skipping names that already
	// exist with the same type. Returns the stored entities (created plus
	// pre-existing), index-aligned with the input.
	CreateEntities(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error)

	// GetEntity returns an entity by ID.
	GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error)

	// ListEntities returns entities, optionally filtered by type.
	ListEntities(ctx context.Context, entityType string, limit int) ([]*models.Entity, error)

	// DeleteEntity deletes an entity after clearing its relations and
	// observations. The foreign keys do not cascade.
	DeleteEntity(ctx context.Context, id uuid.UUID) error

	// CreateRelation creates a typed edge between two existing entities.
	CreateRelation(ctx context.Context, relation *models.Relation) error

	// CreateRelations creates a batch of relations.
	CreateRelations(ctx context.Context, relations []*models.Relation) error

	// ListRelations returns relations, newest first.
	ListRelations(ctx context.Context, limit int) ([]*models.Relation, error)

	// ListRelationsForEntity returns all edges touching an entity.
	ListRelationsForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Relation, error)

	// AddObservation records a fact about an entity.
	AddObservation(ctx context.Context, observation *models.Observation) error

	// AddObservations records a batch of observations, embedding contents in
	// one provider call when possible.
	AddObservations(ctx context.Context, observations []*models.Observation) error

	// ListObservations returns observations for an entity, newest first.
	ListObservations(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.Observation, error)

	// Search finds entities matching a free-text query. Semantic hits come
	// first when vector search is live, followed by keyword hits.
	Search(ctx context.Context, query string, limit int) ([]*models.SearchResult, error)
}

type graphService struct {
	agents        repositories.AgentRepository
	entities      repositories.EntityRepository
	relations     repositories.RelationRepository
	observations  repositories.ObservationRepository
	embedder      EmbeddingService
	vectorEnabled bool
	logger        *zap.Logger
}

// NewGraphService creates a new GraphService. vectorEnabled gates semantic
// search: with vector support off, the embedding columns are JSONB
// placeholders that cannot be queried by distance.
func NewGraphService(
	agents repositories.AgentRepository,
	entities repositories.EntityRepository,
	relations repositories.RelationRepository,
	observations repositories.ObservationRepository,
	embedder EmbeddingService,
	vectorEnabled bool,
	logger *zap.Logger,
) GraphService {
	return &graphService{
		agents:        agents,
		entities:      entities,
		relations:     relations,
		observations:  observations,
		embedder:      embedder,
		vectorEnabled: vectorEnabled,
		logger:        logger.Named("graph-service"),
	}
}

var _ GraphService = (*graphService)(nil)

func (s *graphService) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if agent.Name == "" {
		return fmt.Errorf("agent name is required")
	}

	if err := s.agents.Create(ctx, agent); err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	s.logger.Info("Agent registered",
		zap.String("agent_id", agent.ID.String()),
		zap.String("name", agent.Name))
	return nil
}

func (s *graphService) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return s.agents.GetByID(ctx, id)
}

func (s *graphService) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	return s.agents.List(ctx)
}

func (s *graphService) CreateEntity(ctx context.Context, entity *models.Entity) error {
	if entity.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if entity.EntityType == "" {
		return fmt.Errorf("entity type is required")
	}

	s.embedEntity(ctx, entity)

	if err := s.entities.Create(ctx, entity); err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	s.logger.Info("Entity created",
		zap.String("entity_id", entity.ID.String()),
		zap.String("name", entity.Name),
		zap.String("entity_type", entity.EntityType))
	return nil
}

func (s *graphService) CreateEntities(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error) {
	result := make([]*models.Entity, 0, len(entities))
	for _, entity := range entities {
		existing, err := s.entities.GetByName(ctx, entity.Name, entity.EntityType)
		if err == nil {
			result = append(result, existing)
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up entity %q: %w", entity.Name, err)
		}

		if err := s.CreateEntity(ctx, entity); err != nil {
			return nil, err
		}
		result = append(result, entity)
	}
	return result, nil
}

func (s *graphService) GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	return s.entities.GetByID(ctx, id)
}

func (s *graphService) ListEntities(ctx context.Context, entityType string, limit int) ([]*models.Entity, error) {
	return s.entities.List(ctx, entityType, limit)
}

func (s *graphService) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	if _, err := s.entities.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.relations.DeleteForEntity(ctx, id); err != nil {
		return fmt.Errorf("failed to delete relations for entity: %w", err)
	}
	if err := s.observations.DeleteForEntity(ctx, id); err != nil {
		return fmt.Errorf("failed to delete observations for entity: %w", err)
	}
	if err := s.entities.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	s.logger.Info("Entity deleted", zap.String("entity_id", id.String()))
	return nil
}

func (s *graphService) CreateRelation(ctx context.Context, relation *models.Relation) error {
	if relation.RelationType == "" {
		return fmt.Errorf("relation type is required")
	}

	// Resolve both endpoints so a bad reference surfaces as not-found
	// instead of a foreign key violation.
	if _, err := s.entities.GetByID(ctx, relation.FromEntityID); err != nil {
		return fmt.Errorf("from entity %s: %w", relation.FromEntityID, err)
	}
	if _, err := s.entities.GetByID(ctx, relation.ToEntityID); err != nil {
		return fmt.Errorf("to entity %s: %w", relation.ToEntityID, err)
	}

	if err := s.relations.Create(ctx, relation); err != nil {
		return fmt.Errorf("failed to create relation: %w", err)
	}

	s.logger.Info("Relation created",
		zap.String("from", relation.FromEntityID.String()),
		zap.String("to", relation.ToEntityID.String()),
		zap.String("relation_type", relation.RelationType))
	return nil
}

func (s *graphService) CreateRelations(ctx context.Context, relations []*models.Relation) error {
	for _, relation := range relations {
		if err := s.CreateRelation(ctx, relation); err != nil {
			return err
		}
	}
	return nil
}

func (s *graphService) ListRelations(ctx context.Context, limit int) ([]*models.Relation, error) {
	return s.relations.List(ctx, limit)
}

func (s *graphService) ListRelationsForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Relation, error) {
	return s.relations.ListForEntity(ctx, entityID)
}

func (s *graphService) AddObservation(ctx context.Context, observation *models.Observation) error {
	if observation.Content == "" {
		return fmt.Errorf("observation content is required")
	}
	if _, err := s.entities.GetByID(ctx, observation.EntityID); err != nil {
		return fmt.Errorf("entity %s: %w", observation.EntityID, err)
	}

	if s.embedder.Available() {
		vec, err := s.embedder.Embed(ctx, observation.Content)
		if err != nil {
			s.logger.Warn("Failed to embed observation, storing without embedding", zap.Error(err))
		} else {
			observation.Embedding = vec
		}
	}

	if err := s.observations.Create(ctx, observation); err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}
	return nil
}

func (s *graphService) AddObservations(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	for _, observation := range observations {
		if observation.Content == "" {
			return fmt.Errorf("observation content is required")
		}
		if _, err := s.entities.GetByID(ctx, observation.EntityID); err != nil {
			return fmt.Errorf("entity %s: %w", observation.EntityID, err)
		}
	}

	if s.embedder.Available() {
		texts := make([]string, len(observations))
		for i, observation := range observations {
			texts[i] = observation.Content
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			s.logger.Warn("Failed to embed observations, storing without embeddings", zap.Error(err))
		} else {
			for i := range observations {
				observations[i].Embedding = vecs[i]
			}
		}
	}

	for _, observation := range observations {
		if err := s.observations.Create(ctx, observation); err != nil {
			return fmt.Errorf("failed to create observation: %w", err)
		}
	}

	s.logger.Info("Observations recorded", zap.Int("count", len(observations)))
	return nil
}

func (s *graphService) ListObservations(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.Observation, error) {
	return s.observations.ListByEntity(ctx, entityID, limit)
}

func (s *graphService) Search(ctx context.Context, query string, limit int) ([]*models.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if result := sql.CheckFreeText("query", query); result != nil {
		s.logger.Warn("Search query rejected",
			zap.String("fingerprint", result.Fingerprint))
		return nil, fmt.Errorf("%w (fingerprint %s)", apperrors.ErrUnsafeInput, result.Fingerprint)
	}
	if limit <= 0 {
		limit = 20
	}

	results := make([]*models.SearchResult, 0, limit)
	seen := make(map[uuid.UUID]bool)

	// Semantic pass only works when embeddings live in a real vector column.
	if s.vectorEnabled && s.embedder.Available() {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			s.logger.Warn("Failed to embed search query, falling back to keyword search", zap.Error(err))
		} else {
			semantic, err := s.entities.SearchSemantic(ctx, vec, limit)
			if err != nil {
				return nil, fmt.Errorf("semantic search failed: %w", err)
			}
			for _, hit := range semantic {
				results = append(results, hit)
				seen[hit.Entity.ID] = true
			}
		}
	}

	if len(results) < limit {
		keyword, err := s.entities.SearchKeyword(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
		for _, entity := range keyword {
			if seen[entity.ID] {
				continue
			}
			results = append(results, &models.SearchResult{
				Entity:    entity,
				MatchType: models.MatchTypeKeyword,
			})
			if len(results) >= limit {
				break
			}
		}
	}

	return results, nil
}

// embedEntity attaches an embedding of the entity's name and summary.
// Embedding failures are logged and skipped so graph writes never depend on
// the provider being up.
func (s *graphService) embedEntity(ctx context.Context, entity *models.Entity) {
	if !s.embedder.Available() {
		return
	}

	text := entity.Name
	if entity.Summary != "" {
		text += "\n" + entity.Summary
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("Failed to embed entity, storing without embedding",
			zap.String("name", entity.Name),
			zap.Error(err))
		return
	}
	entity.Embedding = vec
}
