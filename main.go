package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/config"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/handlers"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/llm"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/logging"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/mcp"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/mcp/tools"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/middleware"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/migrate"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/retry"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", cfg.Database.Database),
		zap.String("db_host", cfg.Database.Host),
		zap.Bool("redis", cfg.Redis.IsAvailable()),
		zap.Bool("vector_enabled", cfg.Vector.Enabled),
		zap.Bool("ai_available", cfg.AI.IsAvailable()))

	// Connect the pool with retry; the database may still be starting up.
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &cfg.Database)
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Bootstrap the engine's own registry tables before reconciling models.
	if err := database.RunMigrations(db, logger); err != nil {
		logger.Fatal("Failed to bootstrap registry tables", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	schemaRegistry, err := models.NewSchemaRegistry()
	if err != nil {
		logger.Fatal("Failed to build schema registry", zap.Error(err))
	}

	// Repositories
	registryRepo := repositories.NewRegistryRepository(db)
	agentRepo := repositories.NewAgentRepository(db)
	entityRepo := repositories.NewEntityRepository(db)
	relationRepo := repositories.NewRelationRepository(db)
	observationRepo := repositories.NewObservationRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)

	// LLM clients are optional; without them chat and semantic search report
	// unavailable and the rest of the engine works normally.
	var chatClient, embeddingClient llm.LLMClient
	if cfg.AI.IsAvailable() {
		chatClient, err = llm.NewClientForProvider(&cfg.AI, logger)
		if err != nil {
			logger.Fatal("Failed to create LLM client", zap.Error(err))
		}
		embeddingClient, err = llm.NewEmbeddingClient(&cfg.AI, logger)
		if err != nil {
			logger.Fatal("Failed to create embedding client", zap.Error(err))
		}
	}

	// Services
	embedder := services.NewEmbeddingService(embeddingClient, cfg.AI.EmbeddingModel, redisClient, logger)
	graphService := services.NewGraphService(agentRepo, entityRepo, relationRepo, observationRepo, embedder, cfg.Vector.Enabled, logger)
	contextService := services.NewContextService(graphService, documentRepo, embedder, cfg.Vector.Enabled, logger)
	chatService := services.NewChatService(conversationRepo, contextService, chatClient, cfg.AI.Provider, logger)
	documentService := services.NewDocumentService(documentRepo, embedder, &cfg.Documents, logger)
	seeder := services.NewSeeder(agentRepo, entityRepo, logger)

	// Reconcile the managed tables against the model definitions.
	manager := migrate.NewManager(db, schemaRegistry, registryRepo, seeder, cfg.Vector.Enabled, logger)
	summary, err := manager.Run(ctx, migrate.Options{
		AllowColumnRemoval: cfg.Migrations.AllowColumnRemoval,
		Seed:               cfg.Migrations.Seed,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrMigrationLocked) {
			logger.Warn("Another instance holds the migration lock, continuing with the current schema")
		} else {
			logger.Fatal("Schema migration failed", zap.Error(err))
		}
	} else {
		logger.Info("Schema migration completed",
			zap.Int("created", summary.Created),
			zap.Int("migrated", summary.Migrated),
			zap.Int("verified", summary.Verified),
			zap.Int("errors", len(summary.Errors)),
			zap.Int64("duration_ms", summary.DurationMS))
	}

	if cfg.Migrations.RowCountRefreshMinutes > 0 {
		refresher := migrate.NewRowCountRefresher(db, schemaRegistry, registryRepo, logger)
		refresher.Start(ctx, time.Duration(cfg.Migrations.RowCountRefreshMinutes)*time.Minute)
	}

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAgentsHandler(graphService, logger).RegisterRoutes(mux)
	handlers.NewEntitiesHandler(graphService, logger).RegisterRoutes(mux)
	handlers.NewRelationsHandler(graphService, logger).RegisterRoutes(mux)
	handlers.NewSearchHandler(graphService, logger).RegisterRoutes(mux)
	handlers.NewDocumentsHandler(documentService, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatService, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(registryRepo, manager, logger).RegisterRoutes(mux)

	// MCP server on /mcp (streamable HTTP)
	mcpServer := mcp.NewServer("mindmesh-engine", cfg.Version, logger)
	tools.RegisterGraphTools(mcpServer.MCP(), &tools.GraphToolDeps{Graph: graphService, Logger: logger})
	tools.RegisterContextTool(mcpServer.MCP(), &tools.ContextToolDeps{Context: contextService, Logger: logger})
	tools.RegisterSchemaStatusTool(mcpServer.MCP(), &tools.SchemaToolDeps{Registry: registryRepo, Logger: logger})
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version)
	mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer()))

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting mindmesh-engine",
			zap.String("addr", addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
