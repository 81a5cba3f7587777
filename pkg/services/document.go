package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/config"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
)

// DocumentService ingests source documents and splits them into overlapping
// chunks for retrieval.
type DocumentService interface {
	// Ingest stores a document and its chunks. Content is deduplicated by
	// SHA-256 checksum: re-ingesting identical content returns the existing
	// document and created=false.
	Ingest(ctx context.Context, title, source, content string) (*models.Document, bool, error)

	// Get returns a document by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)

	// GetChunks returns a document's chunks in index order.
	GetChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error)
}

type documentService struct {
	documents repositories.DocumentRepository
	embedder  EmbeddingService
	chunkSize int
	overlap   int
	logger    *zap.Logger
}

// NewDocumentService creates a new DocumentService with chunking settings
// from configuration.
func NewDocumentService(
	documents repositories.DocumentRepository,
	embedder EmbeddingService,
	cfg *config.DocumentsConfig,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		documents: documents,
		embedder:  embedder,
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.ChunkOverlap,
		logger:    logger.Named("document-service"),
	}
}

var _ DocumentService = (*documentService)(nil)

func (s *documentService) Ingest(ctx context.Context, title, source, content string) (*models.Document, bool, error) {
	if title == "" {
		return nil, false, fmt.Errorf("document title is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, false, fmt.Errorf("document content is required")
	}

	sum := sha256.Sum256([]byte(content))
	checksum := hex.EncodeToString(sum[:])

	existing, err := s.documents.GetByChecksum(ctx, checksum)
	if err == nil {
		s.logger.Info("Document already ingested",
			zap.String("document_id", existing.ID.String()),
			zap.String("checksum", checksum))
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check for existing document: %w", err)
	}

	document := &models.Document{
		Title:    title,
		Source:   source,
		Content:  content,
		Checksum: checksum,
	}
	if err := s.documents.Create(ctx, document); err != nil {
		return nil, false, fmt.Errorf("failed to create document: %w", err)
	}

	pieces := SplitWords(content, s.chunkSize, s.overlap)
	chunks := make([]*models.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		// Token counts are a word-count approximation.
		count := len(strings.Fields(piece))
		chunks[i] = &models.DocumentChunk{
			DocumentID: document.ID,
			ChunkIndex: i,
			Content:    piece,
			TokenCount: &count,
		}
	}

	s.embedChunks(ctx, pieces, chunks)

	if err := s.documents.CreateChunks(ctx, chunks); err != nil {
		return nil, false, fmt.Errorf("failed to create chunks: %w", err)
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", document.ID.String()),
		zap.String("title", title),
		zap.Int("chunks", len(chunks)))
	return document, true, nil
}

func (s *documentService) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.documents.GetByID(ctx, id)
}

func (s *documentService) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error) {
	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.documents.ListChunks(ctx, documentID)
}

// embedChunks attaches embeddings in one batch call. Provider failures are
// logged and skipped so ingestion never depends on the provider being up.
func (s *documentService) embedChunks(ctx context.Context, pieces []string, chunks []*models.DocumentChunk) {
	if !s.embedder.Available() || len(pieces) == 0 {
		return
	}

	vecs, err := s.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		s.logger.Warn("Failed to embed chunks, storing without embeddings", zap.Error(err))
		return
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
}
