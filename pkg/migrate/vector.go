package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// vectorTarget names an embedding column that should carry an HNSW index
// once its table exists and the column holds a real vector type.
type vectorTarget struct {
	Table  string
	Column string
	Index  string
}

var vectorTargets = []vectorTarget{
	{Table: "entities", Column: "embedding", Index: "idx_entities_embedding_hnsw"},
	{Table: "observations", Column: "embedding", Index: "idx_observations_embedding_hnsw"},
	{Table: "document_chunks", Column: "embedding", Index: "idx_document_chunks_embedding_hnsw"},
}

// HNSW tuning: graph connectivity and construction search breadth.
const (
	hnswM              = 16
	hnswEfConstruction = 64
)

// VectorManager installs the pgvector extension and the approximate
// nearest-neighbor indexes. Every failure here is a warning: the rest of the
// system works without vector search, it just falls back to keyword matching.
type VectorManager struct {
	pool   *pgxpool.Pool
	intro  *Introspector
	logger *zap.Logger
}

// NewVectorManager creates a VectorManager sharing the run's introspector.
func NewVectorManager(pool *pgxpool.Pool, intro *Introspector, logger *zap.Logger) *VectorManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorManager{
		pool:   pool,
		intro:  intro,
		logger: logger.Named("vector-manager"),
	}
}

// Ensure installs the extension and creates any missing HNSW indexes.
// Failures are logged and swallowed; vector search stays unavailable for the run.
func (v *VectorManager) Ensure(ctx context.Context) {
	if _, err := v.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		v.logger.Warn("Vector extension unavailable, semantic search disabled for this run",
			zap.Error(err))
		return
	}

	for _, target := range vectorTargets {
		v.ensureIndex(ctx, target)
	}
}

func (v *VectorManager) ensureIndex(ctx context.Context, target vectorTarget) {
	exists, err := v.intro.TableExists(ctx, target.Table)
	if err != nil {
		v.logger.Warn("Failed to check table for vector index",
			zap.String("table", target.Table),
			zap.Error(err))
		return
	}
	if !exists {
		v.logger.Debug("Skipping vector index, table missing",
			zap.String("table", target.Table))
		return
	}

	live, err := v.intro.Describe(ctx, target.Table)
	if err != nil {
		v.logger.Warn("Failed to introspect table for vector index",
			zap.String("table", target.Table),
			zap.Error(err))
		return
	}

	col := live.Column(target.Column)
	if col == nil || !strings.Contains(strings.ToLower(col.DataType), "vector") {
		// Column is still a JSONB placeholder from a run made before vector
		// support was enabled; indexing it would fail unconditionally.
		v.logger.Debug("Skipping vector index, column is not a vector type",
			zap.String("table", target.Table),
			zap.String("column", target.Column))
		return
	}

	if live.HasIndex(target.Index) {
		return
	}

	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (%s vector_cosine_ops) WITH (m = %d, ef_construction = %d)",
		target.Index, target.Table, target.Column, hnswM, hnswEfConstruction,
	)
	if _, err := v.pool.Exec(ctx, stmt); err != nil {
		v.logger.Warn("Failed to create vector index",
			zap.String("table", target.Table),
			zap.String("index", target.Index),
			zap.Error(err))
		return
	}

	v.logger.Info("Created vector index",
		zap.String("table", target.Table),
		zap.String("index", target.Index))
}
