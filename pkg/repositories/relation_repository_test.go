//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/testhelpers"
)

type relationTestContext struct {
	relations RelationRepository
	entities  EntityRepository
	db        *database.DB

	from *models.Entity
	to   *models.Entity
}

func setupRelationTest(t *testing.T) *relationTestContext {
	t.Helper()
	db := testhelpers.NewIsolatedDB(t)
	testhelpers.CreateManagedTables(t, db, false)

	tc := &relationTestContext{
		relations: NewRelationRepository(db),
		entities:  NewEntityRepository(db),
		db:        db,
		from:      &models.Entity{Name: "engine", EntityType: "project"},
		to:        &models.Entity{Name: "pipeline", EntityType: "component"},
	}

	ctx := context.Background()
	require.NoError(t, tc.entities.Create(ctx, tc.from))
	require.NoError(t, tc.entities.Create(ctx, tc.to))
	return tc
}

func TestRelationRepository_CreateAndList(t *testing.T) {
	tc := setupRelationTest(t)
	ctx := context.Background()

	weight := 0.8
	relation := &models.Relation{
		FromEntityID: tc.from.ID,
		ToEntityID:   tc.to.ID,
		RelationType: "contains",
		Weight:       &weight,
		Metadata:     map[string]any{"source": "test"},
	}
	require.NoError(t, tc.relations.Create(ctx, relation))

	relations, err := tc.relations.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, tc.from.ID, relations[0].FromEntityID)
	assert.Equal(t, tc.to.ID, relations[0].ToEntityID)
	assert.Equal(t, "contains", relations[0].RelationType)
	require.NotNil(t, relations[0].Weight)
	assert.InDelta(t, 0.8, *relations[0].Weight, 1e-9)
	assert.Equal(t, "test", relations[0].Metadata["source"])
}

func TestRelationRepository_NilWeightStaysNull(t *testing.T) {
	tc := setupRelationTest(t)
	ctx := context.Background()

	relation := &models.Relation{
		FromEntityID: tc.from.ID,
		ToEntityID:   tc.to.ID,
		RelationType: "contains",
	}
	require.NoError(t, tc.relations.Create(ctx, relation))

	relations, err := tc.relations.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Nil(t, relations[0].Weight)
}

func TestRelationRepository_TripleIsUnique(t *testing.T) {
	tc := setupRelationTest(t)
	ctx := context.Background()

	first := &models.Relation{FromEntityID: tc.from.ID, ToEntityID: tc.to.ID, RelationType: "contains"}
	require.NoError(t, tc.relations.Create(ctx, first))

	duplicate := &models.Relation{FromEntityID: tc.from.ID, ToEntityID: tc.to.ID, RelationType: "contains"}
	assert.Error(t, tc.relations.Create(ctx, duplicate))

	// Same endpoints under a different type is a distinct edge.
	other := &models.Relation{FromEntityID: tc.from.ID, ToEntityID: tc.to.ID, RelationType: "depends_on"}
	assert.NoError(t, tc.relations.Create(ctx, other))
}

func TestRelationRepository_ForeignKeysEnforced(t *testing.T) {
	tc := setupRelationTest(t)
	ctx := context.Background()

	relation := &models.Relation{
		FromEntityID: tc.from.ID,
		ToEntityID:   uuid.New(),
		RelationType: "contains",
	}
	assert.Error(t, tc.relations.Create(ctx, relation))
}

func TestRelationRepository_ListForEntity(t *testing.T) {
	tc := setupRelationTest(t)
	ctx := context.Background()

	third := &models.Entity{Name: "docs", EntityType: "component"}
	require.NoError(t, tc.entities.Create(ctx, third))

	// from -> to, to -> third: "to" touches both, "from" only the first.
	require.NoError(t, tc.relations.Create(ctx, &models.Relation{FromEntityID: tc.from.ID, ToEntityID: tc.to.ID, RelationType: "contains"}))
	require.NoError(t, tc.relations.Create(ctx, &models.Relation{FromEntityID: tc.to.ID, ToEntityID: third.ID, RelationType: "contains"}))

	touching, err := tc.relations.ListForEntity(ctx, tc.to.ID)
	require.NoError(t, err)
	assert.Len(t, touching, 2, "includes edges in both directions")

	touching, err = tc.relations.ListForEntity(ctx, tc.from.ID)
	require.NoError(t, err)
	assert.Len(t, touching, 1)
}

func TestRelationRepository_DeleteForEntity(t *testing.T) {
	tc := setupRelationTest(t)
	ctx := context.Background()

	require.NoError(t, tc.relations.Create(ctx, &models.Relation{FromEntityID: tc.from.ID, ToEntityID: tc.to.ID, RelationType: "contains"}))

	require.NoError(t, tc.relations.DeleteForEntity(ctx, tc.to.ID))

	relations, err := tc.relations.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, relations)

	// Entity delete succeeds once its edges are gone.
	assert.NoError(t, tc.entities.Delete(ctx, tc.to.ID))
}
