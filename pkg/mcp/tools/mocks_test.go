package tools

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// mockGraphService implements services.GraphService with function fields for
// the methods the tools exercise. Unset methods return zero values.
type mockGraphService struct {
	createEntitiesFn  func(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error)
	createRelationsFn func(ctx context.Context, relations []*models.Relation) error
	addObservationsFn func(ctx context.Context, observations []*models.Observation) error
	searchFn          func(ctx context.Context, query string, limit int) ([]*models.SearchResult, error)
}

func (m *mockGraphService) CreateEntities(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error) {
	if m.createEntitiesFn != nil {
		return m.createEntitiesFn(ctx, entities)
	}
	return entities, nil
}

func (m *mockGraphService) CreateRelations(ctx context.Context, relations []*models.Relation) error {
	if m.createRelationsFn != nil {
		return m.createRelationsFn(ctx, relations)
	}
	return nil
}

func (m *mockGraphService) AddObservations(ctx context.Context, observations []*models.Observation) error {
	if m.addObservationsFn != nil {
		return m.addObservationsFn(ctx, observations)
	}
	return nil
}

func (m *mockGraphService) Search(ctx context.Context, query string, limit int) ([]*models.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

// Remaining GraphService methods, unused by the MCP tools.
func (m *mockGraphService) CreateAgent(ctx context.Context, agent *models.Agent) error { return nil }
func (m *mockGraphService) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return nil, nil
}
func (m *mockGraphService) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	return nil, nil
}
func (m *mockGraphService) CreateEntity(ctx context.Context, entity *models.Entity) error {
	return nil
}
func (m *mockGraphService) GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	return nil, nil
}
func (m *mockGraphService) ListEntities(ctx context.Context, entityType string, limit int) ([]*models.Entity, error) {
	return nil, nil
}
func (m *mockGraphService) DeleteEntity(ctx context.Context, id uuid.UUID) error { return nil }
func (m *mockGraphService) CreateRelation(ctx context.Context, relation *models.Relation) error {
	return nil
}
func (m *mockGraphService) ListRelations(ctx context.Context, limit int) ([]*models.Relation, error) {
	return nil, nil
}
func (m *mockGraphService) ListRelationsForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Relation, error) {
	return nil, nil
}
func (m *mockGraphService) AddObservation(ctx context.Context, observation *models.Observation) error {
	return nil
}
func (m *mockGraphService) ListObservations(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.Observation, error) {
	return nil, nil
}

var _ services.GraphService = (*mockGraphService)(nil)

// mockContextService implements services.ContextService.
type mockContextService struct {
	retrieveFn func(ctx context.Context, query string, maxEntities int) (*services.ContextBlock, error)
	renderFn   func(ctx context.Context, query string, maxEntities int) (string, error)
}

func (m *mockContextService) Retrieve(ctx context.Context, query string, maxEntities int) (*services.ContextBlock, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, query, maxEntities)
	}
	return &services.ContextBlock{Query: query}, nil
}

func (m *mockContextService) Render(ctx context.Context, query string, maxEntities int) (string, error) {
	if m.renderFn != nil {
		return m.renderFn(ctx, query, maxEntities)
	}
	return "", nil
}

var _ services.ContextService = (*mockContextService)(nil)

// mockRegistry implements repositories.RegistryRepository for the schema
// status tool. Only ListRecordsWithStatus matters here.
type mockRegistry struct {
	records []*models.TableRecordWithStatus
	listErr error
}

func (m *mockRegistry) ListRecordsWithStatus(ctx context.Context) ([]*models.TableRecordWithStatus, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.records, nil
}

func (m *mockRegistry) UpsertRecord(ctx context.Context, record *models.TableRecord) error {
	return nil
}
func (m *mockRegistry) GetRecordByTableName(ctx context.Context, tableName string) (*models.TableRecord, error) {
	return nil, nil
}
func (m *mockRegistry) ListRecords(ctx context.Context) ([]*models.TableRecord, error) {
	return nil, nil
}
func (m *mockRegistry) GetStatus(ctx context.Context, tableRecordID uuid.UUID) (*models.TableStatus, error) {
	return nil, nil
}
func (m *mockRegistry) MarkApplied(ctx context.Context, tableRecordID uuid.UUID, dbVersion, changeCount int) error {
	return nil
}
func (m *mockRegistry) MarkVerified(ctx context.Context, tableRecordID uuid.UUID) error { return nil }
func (m *mockRegistry) MarkDataMigrated(ctx context.Context, tableRecordID uuid.UUID) error {
	return nil
}
func (m *mockRegistry) MarkError(ctx context.Context, tableRecordID uuid.UUID, message string) error {
	return nil
}
func (m *mockRegistry) SetStatusMessage(ctx context.Context, tableRecordID uuid.UUID, message string) error {
	return nil
}
func (m *mockRegistry) UpdateRowCount(ctx context.Context, tableName string, count int64) error {
	return nil
}

var _ repositories.RegistryRepository = (*mockRegistry)(nil)
