package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/config"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
)

// TestImage is PostgreSQL 16 with the pgvector extension available, so the
// vector index paths are testable against a real extension.
const TestImage = "pgvector/pgvector:pg16"

const (
	testUser     = "mindmesh"
	testPassword = "test_password"
	testDatabase = "mindmesh_test"
)

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	Host      string
	Port      int
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        TestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	var db *database.DB
	// The ready log can race the first connection attempt; retry briefly.
	for i := 0; i < 10; i++ {
		db, err = database.NewConnection(ctx, testDatabaseConfig(host, port.Int(), testDatabase))
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

func testDatabaseConfig(host string, port int, dbName string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:           host,
		Port:           port,
		User:           testUser,
		Password:       testPassword,
		Database:       dbName,
		MaxConnections: 5,
		SSLMode:        "disable",
	}
}

// NewIsolatedDB creates a fresh database inside the shared container and
// connects to it. Migration scenarios need a pristine catalog, so each test
// gets its own database; it is dropped when the test finishes.
func NewIsolatedDB(t *testing.T) *database.DB {
	t.Helper()

	testDB := GetTestDB(t)
	ctx := context.Background()

	name := "test_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	if _, err := testDB.DB.Exec(ctx, "CREATE DATABASE "+name); err != nil {
		t.Fatalf("Failed to create isolated database: %v", err)
	}

	db, err := database.NewConnection(ctx, testDatabaseConfig(testDB.Host, testDB.Port, name))
	if err != nil {
		t.Fatalf("Failed to connect to isolated database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		// Kick out any straggler sessions so the drop cannot block.
		_, _ = testDB.DB.Exec(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, name)
		_, _ = testDB.DB.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
	})

	return db
}
