//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/testhelpers"
)

func setupDocumentRepo(t *testing.T, vectorEnabled bool) (DocumentRepository, *database.DB) {
	t.Helper()
	db := testhelpers.NewIsolatedDB(t)
	testhelpers.CreateManagedTables(t, db, vectorEnabled)
	return NewDocumentRepository(db), db
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	repo, _ := setupDocumentRepo(t, false)
	ctx := context.Background()

	doc := &models.Document{
		Title:    "runbook",
		Source:   "wiki/runbook.md",
		Content:  "restart the engine before panicking",
		Checksum: "abc123",
	}
	require.NoError(t, repo.Create(ctx, doc))

	fetched, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "runbook", fetched.Title)
	assert.Equal(t, "wiki/runbook.md", fetched.Source)
	assert.Equal(t, "abc123", fetched.Checksum)
}

func TestDocumentRepository_GetByChecksum(t *testing.T) {
	repo, _ := setupDocumentRepo(t, false)
	ctx := context.Background()

	doc := &models.Document{Title: "runbook", Content: "body", Checksum: "abc123"}
	require.NoError(t, repo.Create(ctx, doc))

	fetched, err := repo.GetByChecksum(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, fetched.ID)

	_, err = repo.GetByChecksum(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// The checksum index rejects duplicate content.
	dup := &models.Document{Title: "copy", Content: "body", Checksum: "abc123"}
	assert.Error(t, repo.Create(ctx, dup))
}

func TestDocumentRepository_Chunks(t *testing.T) {
	repo, _ := setupDocumentRepo(t, false)
	ctx := context.Background()

	doc := &models.Document{Title: "runbook", Content: "body", Checksum: "abc123"}
	require.NoError(t, repo.Create(ctx, doc))

	tokens := 4
	chunks := []*models.DocumentChunk{
		{DocumentID: doc.ID, ChunkIndex: 2, Content: "third"},
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "first", TokenCount: &tokens},
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "second"},
	}
	require.NoError(t, repo.CreateChunks(ctx, chunks))

	listed, err := repo.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, chunk := range listed {
		assert.Equal(t, i, chunk.ChunkIndex, "chunks come back in index order")
	}
	require.NotNil(t, listed[0].TokenCount)
	assert.Equal(t, 4, *listed[0].TokenCount)

	// Empty input is a no-op, not an error.
	assert.NoError(t, repo.CreateChunks(ctx, nil))
}

func TestDocumentRepository_ChunkIndexIsUniquePerDocument(t *testing.T) {
	repo, _ := setupDocumentRepo(t, false)
	ctx := context.Background()

	doc := &models.Document{Title: "runbook", Content: "body", Checksum: "abc123"}
	require.NoError(t, repo.Create(ctx, doc))

	require.NoError(t, repo.CreateChunks(ctx, []*models.DocumentChunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "first"},
	}))
	err := repo.CreateChunks(ctx, []*models.DocumentChunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "duplicate"},
	})
	assert.Error(t, err)
}

func TestDocumentRepository_SearchChunksSemantic(t *testing.T) {
	repo, _ := setupDocumentRepo(t, true)
	ctx := context.Background()

	doc := &models.Document{Title: "runbook", Content: "body", Checksum: "abc123"}
	require.NoError(t, repo.Create(ctx, doc))

	chunks := make([]*models.DocumentChunk, 0, 3)
	for i := 0; i < 3; i++ {
		chunk := &models.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    fmt.Sprintf("chunk %d", i),
		}
		if i < 2 {
			chunk.Embedding = unitVector(i)
		}
		chunks = append(chunks, chunk)
	}
	require.NoError(t, repo.CreateChunks(ctx, chunks))

	results, err := repo.SearchChunksSemantic(ctx, unitVector(1), 10)
	require.NoError(t, err)
	require.Len(t, results, 2, "chunks without embeddings are not candidates")
	assert.Equal(t, "chunk 1", results[0].Content)
	assert.Equal(t, "chunk 0", results[1].Content)
}
