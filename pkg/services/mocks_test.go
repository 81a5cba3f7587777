package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
)

// Map-backed repository mocks shared by the service tests. Error fields
// force failures; fn fields override behavior per test.

type mockAgentRepo struct {
	agents    map[uuid.UUID]*models.Agent
	createErr error
	creates   int
}

func newMockAgentRepo() *mockAgentRepo {
	return &mockAgentRepo{agents: make(map[uuid.UUID]*models.Agent)}
}

func (m *mockAgentRepo) Create(ctx context.Context, agent *models.Agent) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.creates++
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	agent.CreatedAt = time.Now()
	agent.UpdatedAt = agent.CreatedAt
	m.agents[agent.ID] = agent
	return nil
}

func (m *mockAgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	agent, ok := m.agents[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return agent, nil
}

func (m *mockAgentRepo) GetByName(ctx context.Context, name string) (*models.Agent, error) {
	for _, agent := range m.agents {
		if agent.Name == name {
			return agent, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAgentRepo) List(ctx context.Context) ([]*models.Agent, error) {
	result := make([]*models.Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		result = append(result, agent)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

var _ repositories.AgentRepository = (*mockAgentRepo)(nil)

type mockEntityRepo struct {
	entities        map[uuid.UUID]*models.Entity
	createErr       error
	semanticResults []*models.SearchResult
	semanticCalls   int
	keywordCalls    int
}

func newMockEntityRepo() *mockEntityRepo {
	return &mockEntityRepo{entities: make(map[uuid.UUID]*models.Entity)}
}

func (m *mockEntityRepo) Create(ctx context.Context, entity *models.Entity) error {
	if m.createErr != nil {
		return m.createErr
	}
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	m.entities[entity.ID] = entity
	return nil
}

func (m *mockEntityRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	entity, ok := m.entities[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return entity, nil
}

func (m *mockEntityRepo) GetByName(ctx context.Context, name, entityType string) (*models.Entity, error) {
	for _, entity := range m.entities {
		if entity.Name == name && entity.EntityType == entityType {
			return entity, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockEntityRepo) List(ctx context.Context, entityType string, limit int) ([]*models.Entity, error) {
	var result []*models.Entity
	for _, entity := range m.entities {
		if entityType != "" && entity.EntityType != entityType {
			continue
		}
		result = append(result, entity)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockEntityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.entities[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.entities, id)
	return nil
}

func (m *mockEntityRepo) SearchKeyword(ctx context.Context, query string, limit int) ([]*models.Entity, error) {
	m.keywordCalls++
	var result []*models.Entity
	needle := strings.ToLower(query)
	for _, entity := range m.entities {
		if strings.Contains(strings.ToLower(entity.Name), needle) ||
			strings.Contains(strings.ToLower(entity.Summary), needle) {
			result = append(result, entity)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockEntityRepo) SearchSemantic(ctx context.Context, embedding []float32, limit int) ([]*models.SearchResult, error) {
	m.semanticCalls++
	return m.semanticResults, nil
}

var _ repositories.EntityRepository = (*mockEntityRepo)(nil)

type mockRelationRepo struct {
	relations        map[uuid.UUID]*models.Relation
	deletedForEntity []uuid.UUID
}

func newMockRelationRepo() *mockRelationRepo {
	return &mockRelationRepo{relations: make(map[uuid.UUID]*models.Relation)}
}

func (m *mockRelationRepo) Create(ctx context.Context, relation *models.Relation) error {
	if relation.ID == uuid.Nil {
		relation.ID = uuid.New()
	}
	relation.CreatedAt = time.Now()
	relation.UpdatedAt = relation.CreatedAt
	m.relations[relation.ID] = relation
	return nil
}

func (m *mockRelationRepo) List(ctx context.Context, limit int) ([]*models.Relation, error) {
	var result []*models.Relation
	for _, relation := range m.relations {
		result = append(result, relation)
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRelationRepo) ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Relation, error) {
	var result []*models.Relation
	for _, relation := range m.relations {
		if relation.FromEntityID == entityID || relation.ToEntityID == entityID {
			result = append(result, relation)
		}
	}
	return result, nil
}

func (m *mockRelationRepo) DeleteForEntity(ctx context.Context, entityID uuid.UUID) error {
	m.deletedForEntity = append(m.deletedForEntity, entityID)
	for id, relation := range m.relations {
		if relation.FromEntityID == entityID || relation.ToEntityID == entityID {
			delete(m.relations, id)
		}
	}
	return nil
}

var _ repositories.RelationRepository = (*mockRelationRepo)(nil)

type mockObservationRepo struct {
	observations     map[uuid.UUID]*models.Observation
	deletedForEntity []uuid.UUID
}

func newMockObservationRepo() *mockObservationRepo {
	return &mockObservationRepo{observations: make(map[uuid.UUID]*models.Observation)}
}

func (m *mockObservationRepo) Create(ctx context.Context, observation *models.Observation) error {
	if observation.ID == uuid.Nil {
		observation.ID = uuid.New()
	}
	observation.CreatedAt = time.Now()
	observation.UpdatedAt = observation.CreatedAt
	m.observations[observation.ID] = observation
	return nil
}

func (m *mockObservationRepo) ListByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.Observation, error) {
	var result []*models.Observation
	for _, observation := range m.observations {
		if observation.EntityID == entityID {
			result = append(result, observation)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockObservationRepo) DeleteForEntity(ctx context.Context, entityID uuid.UUID) error {
	m.deletedForEntity = append(m.deletedForEntity, entityID)
	for id, observation := range m.observations {
		if observation.EntityID == entityID {
			delete(m.observations, id)
		}
	}
	return nil
}

var _ repositories.ObservationRepository = (*mockObservationRepo)(nil)

type mockConversationRepo struct {
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]*models.Message
	addMessageErr error
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]*models.Message),
	}
}

func (m *mockConversationRepo) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	m.conversations[conv.ID] = conv
	return nil
}

func (m *mockConversationRepo) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv, ok := m.conversations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return conv, nil
}

func (m *mockConversationRepo) GetConversationWithMessages(ctx context.Context, id uuid.UUID) (*models.ConversationWithMessages, error) {
	conv, err := m.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ConversationWithMessages{Conversation: conv, Messages: m.messages[id]}, nil
}

func (m *mockConversationRepo) AddMessage(ctx context.Context, message *models.Message) error {
	if m.addMessageErr != nil {
		return m.addMessageErr
	}
	if _, ok := m.conversations[message.ConversationID]; !ok {
		return apperrors.ErrNotFound
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.CreatedAt = time.Now()
	m.messages[message.ConversationID] = append(m.messages[message.ConversationID], message)
	m.conversations[message.ConversationID].UpdatedAt = message.CreatedAt
	return nil
}

func (m *mockConversationRepo) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	messages := m.messages[conversationID]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

var _ repositories.ConversationRepository = (*mockConversationRepo)(nil)

type mockDocumentRepo struct {
	documents    map[uuid.UUID]*models.Document
	chunks       map[uuid.UUID][]*models.DocumentChunk
	chunkSearch  []*models.DocumentChunk
	createChunks int
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{
		documents: make(map[uuid.UUID]*models.Document),
		chunks:    make(map[uuid.UUID][]*models.DocumentChunk),
	}
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	m.documents[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, ok := m.documents[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return doc, nil
}

func (m *mockDocumentRepo) GetByChecksum(ctx context.Context, checksum string) (*models.Document, error) {
	for _, doc := range m.documents {
		if doc.Checksum == checksum {
			return doc, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDocumentRepo) CreateChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	m.createChunks++
	for _, chunk := range chunks {
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}
		m.chunks[chunk.DocumentID] = append(m.chunks[chunk.DocumentID], chunk)
	}
	return nil
}

func (m *mockDocumentRepo) ListChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error) {
	return m.chunks[documentID], nil
}

func (m *mockDocumentRepo) SearchChunksSemantic(ctx context.Context, embedding []float32, limit int) ([]*models.DocumentChunk, error) {
	return m.chunkSearch, nil
}

var _ repositories.DocumentRepository = (*mockDocumentRepo)(nil)

// mockEmbedder implements EmbeddingService without a provider.
type mockEmbedder struct {
	available  bool
	vec        []float32
	embedErr   error
	embedCalls int
	batchCalls int
}

func (m *mockEmbedder) Available() bool { return m.available }

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vec, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = m.vec
	}
	return vecs, nil
}

var _ EmbeddingService = (*mockEmbedder)(nil)

// mockContextService returns canned context for chat tests.
type mockContextService struct {
	rendered  string
	renderErr error
}

func (m *mockContextService) Retrieve(ctx context.Context, query string, maxEntities int) (*ContextBlock, error) {
	if m.renderErr != nil {
		return nil, m.renderErr
	}
	return &ContextBlock{Query: query}, nil
}

func (m *mockContextService) Render(ctx context.Context, query string, maxEntities int) (string, error) {
	if m.renderErr != nil {
		return "", m.renderErr
	}
	return m.rendered, nil
}

var _ ContextService = (*mockContextService)(nil)
