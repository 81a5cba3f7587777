package testhelpers

import (
	"context"
	"testing"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/schema"
)

// CreateManagedTables creates every managed table definition in dependency
// order, the way a completed migration run leaves the database. With
// vectorEnabled the pgvector extension is installed and embedding columns are
// real VECTOR columns; otherwise they are JSONB placeholders.
func CreateManagedTables(t *testing.T, db *database.DB, vectorEnabled bool) {
	t.Helper()
	ctx := context.Background()

	if vectorEnabled {
		if _, err := db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			t.Fatalf("Failed to install pgvector extension: %v", err)
		}
	}

	registry, err := models.NewSchemaRegistry()
	if err != nil {
		t.Fatalf("Failed to build schema registry: %v", err)
	}
	ordered, err := registry.Ordered()
	if err != nil {
		t.Fatalf("Failed to order table definitions: %v", err)
	}

	dialect := schema.NewPostgresDialect(vectorEnabled)
	for _, table := range ordered {
		if _, err := db.Exec(ctx, dialect.CreateTable(table)); err != nil {
			t.Fatalf("Failed to create table %s: %v", table.Name, err)
		}
		for i := range table.Indexes {
			if _, err := db.Exec(ctx, dialect.CreateIndex(table.Name, &table.Indexes[i])); err != nil {
				t.Fatalf("Failed to create index %s: %v", table.Indexes[i].Name, err)
			}
		}
	}
}
