package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/migrate"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// mockGraphService is a canned-value mock for handler tests. Error fields
// override the default success behavior per method.
type mockGraphService struct {
	agents        []*models.Agent
	agent         *models.Agent
	entities      []*models.Entity
	entity        *models.Entity
	relations     []*models.Relation
	observations  []*models.Observation
	searchResults []*models.SearchResult

	createAgentErr      error
	getAgentErr         error
	listAgentsErr       error
	createEntityErr     error
	getEntityErr        error
	listEntitiesErr     error
	deleteEntityErr     error
	createRelationErr   error
	listRelationsErr    error
	addObservationErr   error
	listObservationsErr error
	searchErr           error

	createdAgent     *models.Agent
	createdEntity    *models.Entity
	createdRelation  *models.Relation
	addedObservation *models.Observation
	deletedEntityID  uuid.UUID
	lastEntityType   string
	lastQuery        string
	lastLimit        int
}

func (m *mockGraphService) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if m.createAgentErr != nil {
		return m.createAgentErr
	}
	agent.ID = uuid.New()
	agent.CreatedAt = time.Now()
	agent.UpdatedAt = agent.CreatedAt
	m.createdAgent = agent
	return nil
}

func (m *mockGraphService) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	if m.getAgentErr != nil {
		return nil, m.getAgentErr
	}
	return m.agent, nil
}

func (m *mockGraphService) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	if m.listAgentsErr != nil {
		return nil, m.listAgentsErr
	}
	return m.agents, nil
}

func (m *mockGraphService) CreateEntity(ctx context.Context, entity *models.Entity) error {
	if m.createEntityErr != nil {
		return m.createEntityErr
	}
	entity.ID = uuid.New()
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	m.createdEntity = entity
	return nil
}

func (m *mockGraphService) CreateEntities(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error) {
	return entities, nil
}

func (m *mockGraphService) GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	if m.getEntityErr != nil {
		return nil, m.getEntityErr
	}
	return m.entity, nil
}

func (m *mockGraphService) ListEntities(ctx context.Context, entityType string, limit int) ([]*models.Entity, error) {
	if m.listEntitiesErr != nil {
		return nil, m.listEntitiesErr
	}
	m.lastEntityType = entityType
	m.lastLimit = limit
	return m.entities, nil
}

func (m *mockGraphService) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	if m.deleteEntityErr != nil {
		return m.deleteEntityErr
	}
	m.deletedEntityID = id
	return nil
}

func (m *mockGraphService) CreateRelation(ctx context.Context, relation *models.Relation) error {
	if m.createRelationErr != nil {
		return m.createRelationErr
	}
	relation.ID = uuid.New()
	relation.CreatedAt = time.Now()
	relation.UpdatedAt = relation.CreatedAt
	m.createdRelation = relation
	return nil
}

func (m *mockGraphService) CreateRelations(ctx context.Context, relations []*models.Relation) error {
	return nil
}

func (m *mockGraphService) ListRelations(ctx context.Context, limit int) ([]*models.Relation, error) {
	if m.listRelationsErr != nil {
		return nil, m.listRelationsErr
	}
	m.lastLimit = limit
	return m.relations, nil
}

func (m *mockGraphService) ListRelationsForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Relation, error) {
	if m.listRelationsErr != nil {
		return nil, m.listRelationsErr
	}
	return m.relations, nil
}

func (m *mockGraphService) AddObservation(ctx context.Context, observation *models.Observation) error {
	if m.addObservationErr != nil {
		return m.addObservationErr
	}
	observation.ID = uuid.New()
	observation.CreatedAt = time.Now()
	m.addedObservation = observation
	return nil
}

func (m *mockGraphService) AddObservations(ctx context.Context, observations []*models.Observation) error {
	return nil
}

func (m *mockGraphService) ListObservations(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.Observation, error) {
	if m.listObservationsErr != nil {
		return nil, m.listObservationsErr
	}
	return m.observations, nil
}

func (m *mockGraphService) Search(ctx context.Context, query string, limit int) ([]*models.SearchResult, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.lastQuery = query
	m.lastLimit = limit
	return m.searchResults, nil
}

var _ services.GraphService = (*mockGraphService)(nil)

// mockDocumentService is a canned-value mock for document handler tests.
type mockDocumentService struct {
	document *models.Document
	created  bool
	chunks   []*models.DocumentChunk

	ingestErr    error
	getErr       error
	getChunksErr error

	lastTitle   string
	lastContent string
}

func (m *mockDocumentService) Ingest(ctx context.Context, title, source, content string) (*models.Document, bool, error) {
	if m.ingestErr != nil {
		return nil, false, m.ingestErr
	}
	m.lastTitle = title
	m.lastContent = content
	return m.document, m.created, nil
}

func (m *mockDocumentService) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.document, nil
}

func (m *mockDocumentService) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error) {
	if m.getChunksErr != nil {
		return nil, m.getChunksErr
	}
	return m.chunks, nil
}

var _ services.DocumentService = (*mockDocumentService)(nil)

// mockChatService is a canned-value mock for chat handler tests.
type mockChatService struct {
	available    bool
	conversation *models.Conversation
	transcript   *models.ConversationWithMessages
	result       *services.ChatResult

	createErr error
	getErr    error
	sendErr   error

	lastContent string
}

func (m *mockChatService) Available() bool { return m.available }

func (m *mockChatService) CreateConversation(ctx context.Context, agentID *uuid.UUID, title string) (*models.Conversation, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.conversation != nil {
		return m.conversation, nil
	}
	return &models.Conversation{
		ID:        uuid.New(),
		AgentID:   agentID,
		Title:     title,
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

func (m *mockChatService) GetConversation(ctx context.Context, id uuid.UUID) (*models.ConversationWithMessages, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.transcript, nil
}

func (m *mockChatService) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*services.ChatResult, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.lastContent = content
	return m.result, nil
}

var _ services.ChatService = (*mockChatService)(nil)

// mockSchemaRegistry implements the registry read path used by the schema
// handler; the mutating methods are never reached from HTTP.
type mockSchemaRegistry struct {
	records []*models.TableRecordWithStatus
	listErr error
}

func (m *mockSchemaRegistry) ListRecordsWithStatus(ctx context.Context) ([]*models.TableRecordWithStatus, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.records, nil
}

func (m *mockSchemaRegistry) UpsertRecord(ctx context.Context, record *models.TableRecord) error {
	return nil
}
func (m *mockSchemaRegistry) GetRecordByTableName(ctx context.Context, tableName string) (*models.TableRecord, error) {
	return nil, apperrors.ErrNotFound
}
func (m *mockSchemaRegistry) ListRecords(ctx context.Context) ([]*models.TableRecord, error) {
	return nil, nil
}
func (m *mockSchemaRegistry) GetStatus(ctx context.Context, tableRecordID uuid.UUID) (*models.TableStatus, error) {
	return nil, apperrors.ErrNotFound
}
func (m *mockSchemaRegistry) MarkApplied(ctx context.Context, tableRecordID uuid.UUID, dbVersion, changeCount int) error {
	return nil
}
func (m *mockSchemaRegistry) MarkVerified(ctx context.Context, tableRecordID uuid.UUID) error {
	return nil
}
func (m *mockSchemaRegistry) MarkDataMigrated(ctx context.Context, tableRecordID uuid.UUID) error {
	return nil
}
func (m *mockSchemaRegistry) MarkError(ctx context.Context, tableRecordID uuid.UUID, message string) error {
	return nil
}
func (m *mockSchemaRegistry) SetStatusMessage(ctx context.Context, tableRecordID uuid.UUID, message string) error {
	return nil
}
func (m *mockSchemaRegistry) UpdateRowCount(ctx context.Context, tableName string, count int64) error {
	return nil
}

var _ repositories.RegistryRepository = (*mockSchemaRegistry)(nil)

// mockMigrationRunner records the options it was invoked with.
type mockMigrationRunner struct {
	summary *migrate.Summary
	runErr  error

	called   bool
	lastOpts migrate.Options
}

func (m *mockMigrationRunner) Run(ctx context.Context, opts migrate.Options) (*migrate.Summary, error) {
	m.called = true
	m.lastOpts = opts
	if m.runErr != nil {
		return nil, m.runErr
	}
	if m.summary != nil {
		return m.summary, nil
	}
	return &migrate.Summary{}, nil
}

// notFoundErr builds a wrapped not-found error the way repositories do.
func notFoundErr(what string) error {
	return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
}
