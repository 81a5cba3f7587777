package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

// DocumentRepository provides data access for documents and their chunks.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// GetByChecksum looks a document up by its content checksum, used to
	// deduplicate ingestion.
	GetByChecksum(ctx context.Context, checksum string) (*models.Document, error)

	CreateChunks(ctx context.Context, chunks []*models.DocumentChunk) error
	ListChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error)
	// SearchChunksSemantic ranks chunks by cosine distance to the query
	// embedding. Only valid when the embedding column is a live VECTOR column.
	SearchChunksSemantic(ctx context.Context, embedding []float32, limit int) ([]*models.DocumentChunk, error)
}

type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

var _ DocumentRepository = (*documentRepository)(nil)

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	var source any
	if doc.Source != "" {
		source = doc.Source
	}

	query := `
		INSERT INTO documents (id, title, source, content, checksum, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.Title, source, doc.Content, doc.Checksum,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := documentSelect + ` WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (r *documentRepository) GetByChecksum(ctx context.Context, checksum string) (*models.Document, error) {
	query := documentSelect + ` WHERE checksum = $1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, checksum))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document by checksum: %w", err)
	}

	return doc, nil
}

func (r *documentRepository) CreateChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now()

	batch := &pgx.Batch{}
	query := `
		INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, chunk := range chunks {
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}
		chunk.CreatedAt = now

		var embedding any
		if len(chunk.Embedding) > 0 {
			embedding = models.VectorLiteral(chunk.Embedding)
		}

		batch.Queue(query,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content,
			embedding, chunk.TokenCount, chunk.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to create chunk %d: %w", i, err)
		}
	}

	return nil
}

func (r *documentRepository) ListChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error) {
	query := chunkSelect + `
		WHERE document_id = $1
		ORDER BY chunk_index ASC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

func (r *documentRepository) SearchChunksSemantic(ctx context.Context, embedding []float32, limit int) ([]*models.DocumentChunk, error) {
	if limit <= 0 {
		limit = 10
	}

	query := chunkSelect + `
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, models.VectorLiteral(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks by embedding: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

const documentSelect = `
	SELECT id, title, source, content, checksum, created_at, updated_at
	FROM documents`

const chunkSelect = `
	SELECT id, document_id, chunk_index, content, token_count, created_at
	FROM document_chunks`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	var source *string

	err := row.Scan(
		&doc.ID, &doc.Title, &source, &doc.Content, &doc.Checksum,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if source != nil {
		doc.Source = *source
	}

	return &doc, nil
}

func collectChunks(rows pgx.Rows) ([]*models.DocumentChunk, error) {
	chunks := make([]*models.DocumentChunk, 0)
	for rows.Next() {
		var chunk models.DocumentChunk
		err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Content,
			&chunk.TokenCount, &chunk.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return chunks, nil
}
