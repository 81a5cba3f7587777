package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/schema"
)

// The managed schema. Every table the engine owns is declared here; the
// migration pipeline reconciles the live database against these definitions
// on startup. Registration order does not matter (the registry sorts by
// foreign-key dependencies), but keeping referents first makes the
// declarations easier to read.

// newUUID is the dynamic default for primary keys. Dynamic defaults render
// no SQL DEFAULT clause; repositories generate the value at insert time.
func newUUID() *schema.Default {
	return schema.DynamicDefault(func() any { return uuid.New() })
}

// now is the dynamic default for timestamps, set in Go by the repositories.
func now() *schema.Default {
	return schema.DynamicDefault(func() any { return time.Now() })
}

func idColumn() schema.Column {
	return schema.Column{Name: "id", Kind: schema.KindUUID, PrimaryKey: true, Default: newUUID()}
}

func timestampColumns() []schema.Column {
	return []schema.Column{
		{Name: "created_at", Kind: schema.KindDateTime, Default: now()},
		{Name: "updated_at", Kind: schema.KindDateTime, Default: now()},
	}
}

// EmbeddingDimensions is the width of every embedding column. Matches the
// default OpenAI text-embedding-3-small output.
const EmbeddingDimensions = 1536

func embeddingColumn() schema.Column {
	return schema.Column{Name: "embedding", Kind: schema.KindVector, Dimensions: EmbeddingDimensions, Nullable: true}
}

// AgentsTable declares the agents table.
func AgentsTable() *schema.Table {
	return &schema.Table{
		Model:       "Agent",
		Description: "AI agents registered with the platform",
		Version:     1,
		Columns: append([]schema.Column{
			idColumn(),
			{Name: "name", Kind: schema.KindString, Length: 120},
			{Name: "role", Kind: schema.KindString, Length: 60, Default: schema.StaticDefault("collaborator")},
			{Name: "description", Kind: schema.KindText, Nullable: true},
			{Name: "metadata", Kind: schema.KindJSON, Nullable: true},
		}, timestampColumns()...),
		Indexes: []schema.Index{
			{Name: "idx_agents_name", Columns: []string{"name"}, Unique: true},
		},
	}
}

// EntitiesTable declares the entities table, the graph's nodes.
func EntitiesTable() *schema.Table {
	return &schema.Table{
		Model:       "Entity",
		Description: "knowledge graph nodes",
		Version:     1,
		Columns: append([]schema.Column{
			idColumn(),
			{Name: "name", Kind: schema.KindString, Length: 255},
			{Name: "entity_type", Kind: schema.KindString, Length: 80},
			{Name: "summary", Kind: schema.KindText, Nullable: true},
			embeddingColumn(),
			{Name: "metadata", Kind: schema.KindJSON, Nullable: true},
		}, timestampColumns()...),
		Indexes: []schema.Index{
			{Name: "idx_entities_name_type", Columns: []string{"name", "entity_type"}, Unique: true},
			{Name: "idx_entities_entity_type", Columns: []string{"entity_type"}},
		},
	}
}

// RelationsTable declares the relations table, the graph's edges.
//
// Version 2 added the weight column used by relevance scoring; the fixup
// backfills rows created before the column existed.
func RelationsTable() *schema.Table {
	return &schema.Table{
		Model:       "Relation",
		Description: "typed directed edges between entities",
		Version:     2,
		Columns: append([]schema.Column{
			idColumn(),
			{Name: "from_entity_id", Kind: schema.KindUUID},
			{Name: "to_entity_id", Kind: schema.KindUUID},
			{Name: "relation_type", Kind: schema.KindString, Length: 80},
			{Name: "weight", Kind: schema.KindFloat, Nullable: true},
			{Name: "metadata", Kind: schema.KindJSON, Nullable: true},
		}, timestampColumns()...),
		Indexes: []schema.Index{
			{Name: "idx_relations_from_to_type", Columns: []string{"from_entity_id", "to_entity_id", "relation_type"}, Unique: true},
			{Name: "idx_relations_to_entity_id", Columns: []string{"to_entity_id"}},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "from_entity_id", RefTable: "entities", RefColumn: "id"},
			{Column: "to_entity_id", RefTable: "entities", RefColumn: "id"},
		},
		Fixup: func(ctx context.Context, q schema.Querier, logger *zap.Logger) error {
			tag, err := q.Exec(ctx, `UPDATE relations SET weight = 1.0 WHERE weight IS NULL`)
			if err != nil {
				return fmt.Errorf("backfill relation weights: %w", err)
			}
			if tag.RowsAffected() > 0 {
				logger.Info("Backfilled default relation weights",
					zap.Int64("rows", tag.RowsAffected()))
			}
			return nil
		},
	}
}

// ObservationsTable declares the observations table.
func ObservationsTable() *schema.Table {
	return &schema.Table{
		Model:       "Observation",
		Description: "facts agents recorded about entities",
		Version:     1,
		Columns: append([]schema.Column{
			idColumn(),
			{Name: "entity_id", Kind: schema.KindUUID},
			{Name: "agent_id", Kind: schema.KindUUID, Nullable: true},
			{Name: "content", Kind: schema.KindText},
			embeddingColumn(),
			{Name: "source", Kind: schema.KindString, Length: 120, Nullable: true},
		}, timestampColumns()...),
		Indexes: []schema.Index{
			{Name: "idx_observations_entity_id", Columns: []string{"entity_id"}},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "entity_id", RefTable: "entities", RefColumn: "id"},
			{Column: "agent_id", RefTable: "agents", RefColumn: "id"},
		},
	}
}

// ConversationsTable declares the conversations table.
func ConversationsTable() *schema.Table {
	return &schema.Table{
		Model:       "Conversation",
		Description: "chat sessions with the configured LLM provider",
		Version:     1,
		Columns: append([]schema.Column{
			idColumn(),
			{Name: "agent_id", Kind: schema.KindUUID, Nullable: true},
			{Name: "title", Kind: schema.KindString, Length: 255, Nullable: true},
			{Name: "provider", Kind: schema.KindString, Length: 40},
			{Name: "model", Kind: schema.KindString, Length: 120},
		}, timestampColumns()...),
		Indexes: []schema.Index{
			{Name: "idx_conversations_agent_id", Columns: []string{"agent_id"}},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "agent_id", RefTable: "agents", RefColumn: "id"},
		},
	}
}

// MessagesTable declares the messages table.
func MessagesTable() *schema.Table {
	return &schema.Table{
		Model:       "Message",
		Description: "conversation turns",
		Version:     1,
		Columns: []schema.Column{
			idColumn(),
			{Name: "conversation_id", Kind: schema.KindUUID},
			{Name: "role", Kind: schema.KindString, Length: 20},
			{Name: "content", Kind: schema.KindText},
			{Name: "token_count", Kind: schema.KindInteger, Nullable: true},
			{Name: "created_at", Kind: schema.KindDateTime, Default: now()},
		},
		Indexes: []schema.Index{
			{Name: "idx_messages_conversation_id", Columns: []string{"conversation_id"}},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "conversation_id", RefTable: "conversations", RefColumn: "id"},
		},
	}
}

// DocumentsTable declares the documents table.
func DocumentsTable() *schema.Table {
	return &schema.Table{
		Model:       "Document",
		Description: "ingested source documents, deduplicated by checksum",
		Version:     1,
		Columns: append([]schema.Column{
			idColumn(),
			{Name: "title", Kind: schema.KindString, Length: 255},
			{Name: "source", Kind: schema.KindString, Length: 255, Nullable: true},
			{Name: "content", Kind: schema.KindText},
			{Name: "checksum", Kind: schema.KindString, Length: 64},
		}, timestampColumns()...),
		Indexes: []schema.Index{
			{Name: "idx_documents_checksum", Columns: []string{"checksum"}, Unique: true},
		},
	}
}

// DocumentChunksTable declares the document_chunks table.
func DocumentChunksTable() *schema.Table {
	return &schema.Table{
		Model:       "DocumentChunk",
		Description: "overlapping document slices embedded for retrieval",
		Version:     1,
		Columns: []schema.Column{
			idColumn(),
			{Name: "document_id", Kind: schema.KindUUID},
			{Name: "chunk_index", Kind: schema.KindInteger},
			{Name: "content", Kind: schema.KindText},
			embeddingColumn(),
			{Name: "token_count", Kind: schema.KindInteger, Nullable: true},
			{Name: "created_at", Kind: schema.KindDateTime, Default: now()},
		},
		Indexes: []schema.Index{
			{Name: "idx_document_chunks_doc_index", Columns: []string{"document_id", "chunk_index"}, Unique: true},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "document_id", RefTable: "documents", RefColumn: "id"},
		},
	}
}

// Definitions returns every managed table definition.
func Definitions() []*schema.Table {
	return []*schema.Table{
		AgentsTable(),
		EntitiesTable(),
		RelationsTable(),
		ObservationsTable(),
		ConversationsTable(),
		MessagesTable(),
		DocumentsTable(),
		DocumentChunksTable(),
	}
}

// NewSchemaRegistry builds a registry with every managed table registered.
func NewSchemaRegistry() (*schema.Registry, error) {
	registry := schema.NewRegistry()
	for _, table := range Definitions() {
		if err := registry.Register(table); err != nil {
			return nil, fmt.Errorf("register %s: %w", table.Model, err)
		}
	}
	return registry, nil
}
