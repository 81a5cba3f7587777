package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
)

// Default rows inserted after a successful migration run.
const (
	SeedAgentName      = "system"
	SeedRootEntityName = "MindMesh"
	SeedRootEntityType = "project"
)

// Seeder inserts the baseline records the platform expects: the built-in
// system agent and the root project entity. Implements migrate.Seeder and
// runs inside the migration entry point when seeding is enabled.
type Seeder struct {
	agents   repositories.AgentRepository
	entities repositories.EntityRepository
	logger   *zap.Logger
}

// NewSeeder creates a new Seeder.
func NewSeeder(agents repositories.AgentRepository, entities repositories.EntityRepository, logger *zap.Logger) *Seeder {
	return &Seeder{
		agents:   agents,
		entities: entities,
		logger:   logger.Named("seeder"),
	}
}

// Seed inserts the default rows if absent. Idempotent: re-running against a
// seeded database changes nothing.
func (s *Seeder) Seed(ctx context.Context) error {
	if err := s.seedAgent(ctx); err != nil {
		return err
	}
	return s.seedRootEntity(ctx)
}

func (s *Seeder) seedAgent(ctx context.Context) error {
	_, err := s.agents.GetByName(ctx, SeedAgentName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to look up system agent: %w", err)
	}

	agent := &models.Agent{
		Name:        SeedAgentName,
		Role:        "system",
		Description: "Built-in agent that owns platform-generated records",
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return fmt.Errorf("failed to seed system agent: %w", err)
	}

	s.logger.Info("Seeded system agent", zap.String("agent_id", agent.ID.String()))
	return nil
}

func (s *Seeder) seedRootEntity(ctx context.Context) error {
	_, err := s.entities.GetByName(ctx, SeedRootEntityName, SeedRootEntityType)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to look up root entity: %w", err)
	}

	entity := &models.Entity{
		Name:       SeedRootEntityName,
		EntityType: SeedRootEntityType,
		Summary:    "Root entity for the MindMesh workspace. Attach top-level project knowledge here.",
	}
	if err := s.entities.Create(ctx, entity); err != nil {
		return fmt.Errorf("failed to seed root entity: %w", err)
	}

	s.logger.Info("Seeded root entity", zap.String("entity_id", entity.ID.String()))
	return nil
}
