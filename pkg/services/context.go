package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
)

// Context retrieval bounds. Context blocks feed system prompts, so every
// dimension is capped.
const (
	defaultContextEntities = 5
	observationsPerEntity  = 5
	contextChunkLimit      = 3
)

// EntityContext is one entity plus its most recent observations.
type EntityContext struct {
	Entity       *models.Entity        `json:"entity"`
	Observations []*models.Observation `json:"observations,omitempty"`
}

// ContextBlock is the bounded context retrieved for a query: the top
// matching entities with observations, plus semantically close document
// chunks when vector search is live.
type ContextBlock struct {
	Query    string                  `json:"query"`
	Entities []*EntityContext        `json:"entities"`
	Chunks   []*models.DocumentChunk `json:"chunks,omitempty"`
}

// IsEmpty reports whether the block carries any content.
func (b *ContextBlock) IsEmpty() bool {
	return len(b.Entities) == 0 && len(b.Chunks) == 0
}

// Render formats the block as plain text for inclusion in a system prompt.
func (b *ContextBlock) Render() string {
	if b.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Knowledge graph context:\n")

	for _, ec := range b.Entities {
		fmt.Fprintf(&sb, "\nEntity: %s (%s)\n", ec.Entity.Name, ec.Entity.EntityType)
		if ec.Entity.Summary != "" {
			fmt.Fprintf(&sb, "Summary: %s\n", ec.Entity.Summary)
		}
		for _, obs := range ec.Observations {
			fmt.Fprintf(&sb, "- %s\n", obs.Content)
		}
	}

	if len(b.Chunks) > 0 {
		sb.WriteString("\nDocument excerpts:\n")
		for i, chunk := range b.Chunks {
			fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, chunk.Content)
		}
	}

	return sb.String()
}

// ContextService retrieves bounded context blocks for prompts. Used by the
// chat service and exposed to agents through the get_context MCP tool.
type ContextService interface {
	// Retrieve returns the structured context for a query.
	Retrieve(ctx context.Context, query string, maxEntities int) (*ContextBlock, error)

	// Render retrieves context and formats it for a system prompt. Returns
	// an empty string when nothing in the graph matches.
	Render(ctx context.Context, query string, maxEntities int) (string, error)
}

type contextService struct {
	graph         GraphService
	documents     repositories.DocumentRepository
	embedder      EmbeddingService
	vectorEnabled bool
	logger        *zap.Logger
}

// NewContextService creates a new ContextService.
func NewContextService(
	graph GraphService,
	documents repositories.DocumentRepository,
	embedder EmbeddingService,
	vectorEnabled bool,
	logger *zap.Logger,
) ContextService {
	return &contextService{
		graph:         graph,
		documents:     documents,
		embedder:      embedder,
		vectorEnabled: vectorEnabled,
		logger:        logger.Named("context-service"),
	}
}

var _ ContextService = (*contextService)(nil)

func (s *contextService) Retrieve(ctx context.Context, query string, maxEntities int) (*ContextBlock, error) {
	if maxEntities <= 0 {
		maxEntities = defaultContextEntities
	}

	results, err := s.graph.Search(ctx, query, maxEntities)
	if err != nil {
		return nil, fmt.Errorf("failed to search graph: %w", err)
	}

	block := &ContextBlock{Query: query}
	for _, result := range results {
		observations, err := s.graph.ListObservations(ctx, result.Entity.ID, observationsPerEntity)
		if err != nil {
			return nil, fmt.Errorf("failed to list observations for %s: %w", result.Entity.ID, err)
		}
		block.Entities = append(block.Entities, &EntityContext{
			Entity:       result.Entity,
			Observations: observations,
		})
	}

	// Chunk retrieval needs a live vector column to order by distance.
	if s.vectorEnabled && s.embedder.Available() {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			s.logger.Warn("Failed to embed context query, skipping document excerpts", zap.Error(err))
			return block, nil
		}
		chunks, err := s.documents.SearchChunksSemantic(ctx, vec, contextChunkLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to search document chunks: %w", err)
		}
		block.Chunks = chunks
	}

	return block, nil
}

func (s *contextService) Render(ctx context.Context, query string, maxEntities int) (string, error) {
	block, err := s.Retrieve(ctx, query, maxEntities)
	if err != nil {
		return "", err
	}
	return block.Render(), nil
}
