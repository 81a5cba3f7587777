package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is an AI agent registered with the platform. Agents author
// observations and own conversations.
type Agent struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Role        string         `json:"role,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Entity is a node in the knowledge graph.
type Entity struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	EntityType string         `json:"entity_type"`
	Summary    string         `json:"summary,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	// Embedding is write-only: set before insert when an embedding client is
	// configured, never read back on queries.
	Embedding []float32 `json:"-"`
}

// Relation is a typed, directed edge between two entities.
type Relation struct {
	ID           uuid.UUID      `json:"id"`
	FromEntityID uuid.UUID      `json:"from_entity_id"`
	ToEntityID   uuid.UUID      `json:"to_entity_id"`
	RelationType string         `json:"relation_type"`
	Weight       *float64       `json:"weight,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Observation is a fact an agent recorded about an entity.
type Observation struct {
	ID        uuid.UUID  `json:"id"`
	EntityID  uuid.UUID  `json:"entity_id"`
	AgentID   *uuid.UUID `json:"agent_id,omitempty"`
	Content   string     `json:"content"`
	Source    string     `json:"source,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Embedding []float32 `json:"-"`
}

// SearchResult is one graph search hit. Semantic hits carry the cosine
// distance as Score; keyword hits have no score.
type SearchResult struct {
	Entity    *Entity  `json:"entity"`
	MatchType string   `json:"match_type"`
	Score     *float64 `json:"score,omitempty"`
}

// Match types for SearchResult.
const (
	MatchTypeSemantic = "semantic"
	MatchTypeKeyword  = "keyword"
)
