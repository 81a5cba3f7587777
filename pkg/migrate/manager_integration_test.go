//go:build integration

package migrate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/schema"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/testhelpers"
)

func buildRegistry(t *testing.T, tables ...*schema.Table) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry()
	for _, table := range tables {
		require.NoError(t, registry.Register(table))
	}
	return registry
}

func widgetTable(version int, extra ...schema.Column) *schema.Table {
	columns := []schema.Column{
		{Name: "id", Kind: schema.KindUUID, PrimaryKey: true},
		{Name: "name", Kind: schema.KindString, Length: 120},
		{Name: "created_at", Kind: schema.KindDateTime},
		{Name: "updated_at", Kind: schema.KindDateTime},
	}
	columns = append(columns, extra...)
	return &schema.Table{
		Name:        "widgets",
		Model:       "Widget",
		Description: "test widgets",
		Version:     version,
		Columns:     columns,
	}
}

func newTestManager(db *database.DB, registry *schema.Registry, vectorEnabled bool) (*Manager, repositories.RegistryRepository) {
	records := repositories.NewRegistryRepository(db)
	return NewManager(db, registry, records, nil, vectorEnabled, zap.NewNop()), records
}

func statusFor(t *testing.T, records repositories.RegistryRepository, tableName string) *models.TableStatus {
	t.Helper()
	ctx := context.Background()
	record, err := records.GetRecordByTableName(ctx, tableName)
	require.NoError(t, err)
	status, err := records.GetStatus(ctx, record.ID)
	require.NoError(t, err)
	return status
}

func TestManagerRun_FirstRunCreatesEverything(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	registry := buildRegistry(t,
		widgetTable(1),
		&schema.Table{
			Name:    "gadgets",
			Model:   "Gadget",
			Version: 1,
			Columns: []schema.Column{
				{Name: "id", Kind: schema.KindUUID, PrimaryKey: true},
				{Name: "label", Kind: schema.KindString, Length: 80},
				{Name: "created_at", Kind: schema.KindDateTime},
			},
		},
		&schema.Table{
			Name:    "sprockets",
			Model:   "Sprocket",
			Version: 1,
			Columns: []schema.Column{
				{Name: "id", Kind: schema.KindUUID, PrimaryKey: true},
				{Name: "size", Kind: schema.KindInteger},
				{Name: "created_at", Kind: schema.KindDateTime},
			},
		},
	)

	mgr, records := newTestManager(db, registry, false)

	summary, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 0, summary.Migrated)
	assert.Equal(t, 0, summary.Verified)
	assert.Empty(t, summary.Errors)
	require.Len(t, summary.Tables, 3)

	for _, name := range []string{"widgets", "gadgets", "sprockets"} {
		status := statusFor(t, records, name)
		assert.Equal(t, models.TableStatusApplied, status.Status, name)
		assert.Equal(t, 1, status.DBVersion, name)
		assert.Equal(t, 0, status.LastChangeCount, name)
		assert.NotNil(t, status.LastAppliedAt, name)
	}
}

func TestManagerRun_SecondRunVerifiesEverything(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	registry := buildRegistry(t, widgetTable(1))
	mgr, records := newTestManager(db, registry, false)

	_, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	summary, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 0, summary.Migrated)
	assert.Equal(t, 1, summary.Verified)
	require.Len(t, summary.Tables, 1)
	assert.Equal(t, 0, summary.Tables[0].Changes)

	status := statusFor(t, records, "widgets")
	assert.Equal(t, models.TableStatusVerified, status.Status)
	assert.NotNil(t, status.LastVerifiedAt)
}

func TestManagerRun_ChangeThenVerify(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	mgr, _ := newTestManager(db, buildRegistry(t, widgetTable(1)), false)
	_, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	// New optional column in version 2.
	v2 := widgetTable(2, schema.Column{Name: "color", Kind: schema.KindString, Length: 40, Nullable: true})
	mgr2, records := newTestManager(db, buildRegistry(t, v2), false)

	summary, err := mgr2.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Migrated)
	require.Len(t, summary.Tables, 1)
	assert.Equal(t, 1, summary.Tables[0].Changes)

	status := statusFor(t, records, "widgets")
	assert.Equal(t, models.TableStatusApplied, status.Status)
	assert.Equal(t, 2, status.DBVersion)
	assert.Equal(t, 1, status.LastChangeCount)

	// Third run with no further model changes settles on verified.
	summary, err = mgr2.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Verified)
	assert.Equal(t, models.TableStatusVerified, statusFor(t, records, "widgets").Status)
}

func TestManagerRun_ColumnRemovalGate(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	v1 := widgetTable(1, schema.Column{Name: "temp_notes", Kind: schema.KindText, Nullable: true})
	mgr, _ := newTestManager(db, buildRegistry(t, v1), false)
	_, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	// The column disappears from the definition but removal stays disabled:
	// no DROP COLUMN may run.
	v2 := widgetTable(2)
	mgr2, _ := newTestManager(db, buildRegistry(t, v2), false)
	summary, err := mgr2.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Verified)

	intro := NewIntrospector(db.Pool)
	live, err := intro.Describe(ctx, "widgets")
	require.NoError(t, err)
	assert.True(t, live.HasColumn("temp_notes"), "column must survive while removal is disabled")

	// With the flag on, the orphaned column is dropped.
	summary, err = mgr2.Run(ctx, Options{AllowColumnRemoval: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Migrated)

	intro.Refresh()
	live, err = intro.Describe(ctx, "widgets")
	require.NoError(t, err)
	assert.False(t, live.HasColumn("temp_notes"))
	assert.True(t, live.HasColumn("id"), "protected columns stay")
}

func TestManagerRun_FixupBackfillsData(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	mgr, _ := newTestManager(db, buildRegistry(t, widgetTable(1)), false)
	_, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	_, err = db.Exec(ctx, `INSERT INTO widgets (id, name, created_at, updated_at) VALUES (gen_random_uuid(), 'w1', NOW(), NOW())`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO widgets (id, name, created_at, updated_at) VALUES (gen_random_uuid(), 'w2', NOW(), NOW())`)
	require.NoError(t, err)

	v2 := widgetTable(2, schema.Column{Name: "weight", Kind: schema.KindFloat, Nullable: true})
	v2.Fixup = func(ctx context.Context, q schema.Querier, logger *zap.Logger) error {
		_, err := q.Exec(ctx, `UPDATE widgets SET weight = 1.0 WHERE weight IS NULL`)
		return err
	}

	mgr2, records := newTestManager(db, buildRegistry(t, v2), false)
	summary, err := mgr2.Run(ctx, Options{})
	require.NoError(t, err)

	require.Len(t, summary.Tables, 1)
	assert.Empty(t, summary.Tables[0].FixupError)
	assert.Equal(t, models.TableStatusMigrated, summary.Tables[0].Status)

	status := statusFor(t, records, "widgets")
	assert.Equal(t, models.TableStatusMigrated, status.Status)
	assert.NotNil(t, status.LastDataMigratedAt)

	var nullCount int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM widgets WHERE weight IS NULL`).Scan(&nullCount))
	assert.Equal(t, 0, nullCount)

	// Converged schema: the fixup must not run again, status settles on verified.
	summary, err = mgr2.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Verified)
	assert.Equal(t, models.TableStatusVerified, statusFor(t, records, "widgets").Status)
}

func TestManagerRun_FixupFailureIsNotFatal(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	table := widgetTable(1)
	table.Fixup = func(ctx context.Context, q schema.Querier, logger *zap.Logger) error {
		return fmt.Errorf("backfill exploded")
	}

	mgr, records := newTestManager(db, buildRegistry(t, table), false)
	summary, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Tables, 1)
	assert.Contains(t, summary.Tables[0].FixupError, "backfill exploded")
	// Structural migration stands.
	assert.Equal(t, models.TableStatusApplied, summary.Tables[0].Status)

	status := statusFor(t, records, "widgets")
	assert.Equal(t, models.TableStatusApplied, status.Status)
	require.NotNil(t, status.StatusMessage)
	assert.Contains(t, *status.StatusMessage, "backfill exploded")
}

func TestManagerRun_DependencyOrderWithForeignKeys(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	child := &schema.Table{
		Name:    "widget_parts",
		Model:   "WidgetPart",
		Version: 1,
		Columns: []schema.Column{
			{Name: "id", Kind: schema.KindUUID, PrimaryKey: true},
			{Name: "widget_id", Kind: schema.KindUUID},
			{Name: "created_at", Kind: schema.KindDateTime},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "widget_id", RefTable: "widgets", RefColumn: "id"},
		},
	}

	// Registered child first: the registry must still create widgets before
	// widget_parts or the foreign key would fail.
	registry := buildRegistry(t, child, widgetTable(1))
	mgr, _ := newTestManager(db, registry, false)

	summary, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Empty(t, summary.Errors)

	var count int
	require.NoError(t, db.QueryRow(ctx, `
		SELECT COUNT(*) FROM information_schema.table_constraints
		WHERE table_name = 'widget_parts' AND constraint_type = 'FOREIGN KEY'
	`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestManagerRun_LockedByAnotherSession(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	// Hold the advisory lock from a second session.
	conn, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	var locked bool
	require.NoError(t, conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, migrationLockKey).Scan(&locked))
	require.True(t, locked)
	defer conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, migrationLockKey) //nolint:errcheck

	mgr, _ := newTestManager(db, buildRegistry(t, widgetTable(1)), false)
	_, err = mgr.Run(ctx, Options{})
	assert.ErrorIs(t, err, apperrors.ErrMigrationLocked)
}

type countingSeeder struct {
	calls int
	err   error
}

func (s *countingSeeder) Seed(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestManagerRun_Seeding(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	seeder := &countingSeeder{}
	records := repositories.NewRegistryRepository(db)
	mgr := NewManager(db, buildRegistry(t, widgetTable(1)), records, seeder, false, zap.NewNop())

	_, err := mgr.Run(ctx, Options{Seed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, seeder.calls)

	// Seeder failures are recorded, not fatal.
	seeder.err = fmt.Errorf("duplicate agent")
	summary, err := mgr.Run(ctx, Options{Seed: true})
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "duplicate agent")
}

func TestManagerRun_FullModelRegistry(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	registry, err := models.NewSchemaRegistry()
	require.NoError(t, err)

	mgr, _ := newTestManager(db, registry, true)
	summary, err := mgr.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Created)
	assert.Empty(t, summary.Errors)

	// pgvector image: embedding columns are real vectors and carry HNSW indexes.
	intro := NewIntrospector(db.Pool)
	live, err := intro.Describe(ctx, "entities")
	require.NoError(t, err)
	col := live.Column("embedding")
	require.NotNil(t, col)
	assert.Contains(t, col.DataType, "vector")
	assert.True(t, live.HasIndex("idx_entities_embedding_hnsw"))

	// Idempotence over the real model set.
	summary, err = mgr.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Verified)
	assert.Empty(t, summary.Errors)
}

func TestManagerRun_VectorDisabledUsesJSONPlaceholder(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	ctx := context.Background()

	registry, err := models.NewSchemaRegistry()
	require.NoError(t, err)

	mgr, _ := newTestManager(db, registry, false)
	_, err = mgr.Run(ctx, Options{})
	require.NoError(t, err)

	intro := NewIntrospector(db.Pool)
	live, err := intro.Describe(ctx, "entities")
	require.NoError(t, err)
	col := live.Column("embedding")
	require.NotNil(t, col)
	assert.Equal(t, "jsonb", col.DataType)
	assert.False(t, live.HasIndex("idx_entities_embedding_hnsw"))
}
