package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/llm"
)

// embeddingCacheTTL bounds how long cached vectors live. Embeddings for the
// same model+text never change, the TTL just caps cache growth.
const embeddingCacheTTL = 7 * 24 * time.Hour

// EmbeddingService produces embedding vectors for graph content, with an
// optional Redis cache in front of the provider.
type EmbeddingService interface {
	// Available reports whether an embedding client is configured. Callers
	// skip embedding work entirely when it is not.
	Available() bool

	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds multiple texts in one provider call. The result
	// slice is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type embeddingService struct {
	client llm.LLMClient // nil when no provider is configured
	model  string
	cache  *redis.Client // nil when Redis is not configured
	logger *zap.Logger
}

// NewEmbeddingService creates a new EmbeddingService. Both client and cache
// may be nil; a nil client makes the service report unavailable.
func NewEmbeddingService(client llm.LLMClient, model string, cache *redis.Client, logger *zap.Logger) EmbeddingService {
	return &embeddingService{
		client: client,
		model:  model,
		cache:  cache,
		logger: logger.Named("embedding-service"),
	}
}

var _ EmbeddingService = (*embeddingService)(nil)

func (s *embeddingService) Available() bool {
	return s.client != nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no embedding client configured")
	}

	if vec, ok := s.cacheGet(ctx, text); ok {
		return vec, nil
	}

	vec, err := s.client.CreateEmbedding(ctx, text, s.model)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	s.cacheSet(ctx, text, vec)
	return vec, nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no embedding client configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	// Serve cached entries and collect the rest for one provider call.
	vecs := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := s.cacheGet(ctx, text); ok {
			vecs[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vecs, nil
	}

	fetched, err := s.client.CreateEmbeddings(ctx, missing, s.model)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(missing), len(fetched))
	}

	for j, vec := range fetched {
		vecs[missingIdx[j]] = vec
		s.cacheSet(ctx, missing[j], vec)
	}

	return vecs, nil
}

// cacheKey is the SHA-256 of model and text. The model is part of the key so
// switching embedding models never serves stale vectors.
func (s *embeddingService) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.model + "\x00" + text))
	return "mindmesh:embedding:" + hex.EncodeToString(sum[:])
}

func (s *embeddingService) cacheGet(ctx context.Context, text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, s.cacheKey(text)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Embedding cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		s.logger.Warn("Embedding cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return vec, true
}

// cacheSet stores a vector best-effort: cache failures are logged, never
// surfaced to the caller.
func (s *embeddingService) cacheSet(ctx context.Context, text string, vec []float32) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(text), raw, embeddingCacheTTL).Err(); err != nil {
		s.logger.Warn("Embedding cache write failed", zap.Error(err))
	}
}
