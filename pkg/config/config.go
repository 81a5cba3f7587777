package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for mindmesh-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8990"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional, embedding cache)
	Redis RedisConfig `yaml:"redis"`

	// Schema migration pipeline configuration
	Migrations MigrationsConfig `yaml:"migrations"`

	// pgvector support
	Vector VectorConfig `yaml:"vector"`

	// LLM provider configuration
	AI AIConfig `yaml:"ai"`

	// Document ingestion configuration
	Documents DocumentsConfig `yaml:"documents"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"mindmesh"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"mindmesh_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration for the embedding cache.
// Leaving Host empty disables Redis entirely.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// MigrationsConfig controls the schema migration pipeline.
type MigrationsConfig struct {
	// AllowColumnRemoval enables DROP COLUMN generation for live columns
	// that are no longer declared. Off by default: removals are logged
	// and skipped.
	AllowColumnRemoval bool `yaml:"allow_column_removal" env:"MIGRATIONS_ALLOW_COLUMN_REMOVAL" env-default:"false"`

	// Seed inserts the default agent and root entity after a successful run.
	Seed bool `yaml:"seed" env:"MIGRATIONS_SEED" env-default:"true"`

	// RowCountRefreshMinutes is the interval for the background job that
	// refreshes row counts on the table status records. Zero disables it.
	RowCountRefreshMinutes int `yaml:"row_count_refresh_minutes" env:"MIGRATIONS_ROW_COUNT_REFRESH_MINUTES" env-default:"15"`
}

// VectorConfig controls pgvector extension management.
type VectorConfig struct {
	// Enabled turns on the vector extension manager and VECTOR(n) column
	// rendering. When off, vector columns are created as JSONB placeholders.
	Enabled bool `yaml:"enabled" env:"VECTOR_ENABLED" env-default:"false"`
}

// AIConfig holds LLM provider configuration.
type AIConfig struct {
	// Provider selects the chat client: openai, anthropic or google.
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	Model    string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	// BaseURL overrides the provider endpoint, for OpenAI-compatible servers.
	BaseURL string `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	// EmbeddingModel is used by the embedding service. Embeddings always go
	// through the OpenAI-compatible endpoint regardless of chat provider.
	EmbeddingModel string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	MaxTokens      int    `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"1024"`
}

// IsAvailable returns true if an LLM provider is configured.
func (c *AIConfig) IsAvailable() bool {
	return c.APIKey != ""
}

// DocumentsConfig holds document chunking settings.
type DocumentsConfig struct {
	// ChunkSize is the target chunk size in words.
	ChunkSize int `yaml:"chunk_size" env:"DOCUMENTS_CHUNK_SIZE" env-default:"300"`
	// ChunkOverlap is how many words consecutive chunks share.
	ChunkOverlap int `yaml:"chunk_overlap" env:"DOCUMENTS_CHUNK_OVERLAP" env-default:"50"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml does not exist, configuration comes from the
// environment alone. The version parameter is injected at build time and set
// on the returned Config. Secrets (PGPASSWORD, REDIS_PASSWORD, AI_API_KEY)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Documents.ChunkSize <= 0 {
		return fmt.Errorf("documents.chunk_size must be positive, got %d", c.Documents.ChunkSize)
	}
	if c.Documents.ChunkOverlap < 0 || c.Documents.ChunkOverlap >= c.Documents.ChunkSize {
		return fmt.Errorf("documents.chunk_overlap must be in [0, chunk_size), got %d", c.Documents.ChunkOverlap)
	}
	if c.Migrations.RowCountRefreshMinutes < 0 {
		return fmt.Errorf("migrations.row_count_refresh_minutes must not be negative, got %d", c.Migrations.RowCountRefreshMinutes)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port address for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

// IsAvailable returns true if Redis is configured.
func (c *RedisConfig) IsAvailable() bool {
	return c.Host != ""
}
