package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// MaxBatchSize caps the number of items accepted by the batched graph tools.
const MaxBatchSize = 50

// GraphToolDeps contains dependencies for the knowledge graph tools.
type GraphToolDeps struct {
	Graph  services.GraphService
	Logger *zap.Logger
}

// RegisterGraphTools registers the knowledge graph MCP tools.
func RegisterGraphTools(s *server.MCPServer, deps *GraphToolDeps) {
	registerCreateEntitiesTool(s, deps)
	registerCreateRelationsTool(s, deps)
	registerAddObservationsTool(s, deps)
	registerSearchGraphTool(s, deps)
}

type entityResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	Created    bool   `json:"created"`
}

type createEntitiesResponse struct {
	Created  int            `json:"created"`
	Entities []entityResult `json:"entities"`
}

// registerCreateEntitiesTool adds the create_entities tool for batch entity creation.
func registerCreateEntitiesTool(s *server.MCPServer, deps *GraphToolDeps) {
	tool := mcp.NewTool(
		"create_entities",
		mcp.WithDescription(
			"Create entities in the shared knowledge graph. "+
				"Entities are the nodes other agents build on: services, people, concepts, decisions, projects. "+
				"Creation is idempotent by (name, entity_type) - entities that already exist are returned unchanged "+
				"with created=false, so it is safe to re-run. "+
				fmt.Sprintf("Maximum %d entities per call. ", MaxBatchSize)+
				"Use the returned IDs with create_relations and add_observations. "+
				"Example: name='billing-service', entity_type='service', summary='Handles invoicing and settlement'",
		),
		mcp.WithArray(
			"entities",
			mcp.Required(),
			mcp.Description("Array of entities to create, each with name, entity_type and an optional summary"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string", "description": "Unique entity name within its type"},
					"entity_type": map[string]any{"type": "string", "description": "Entity category (e.g. 'service', 'person', 'concept', 'decision')"},
					"summary":     map[string]any{"type": "string", "description": "One-paragraph summary of the entity"},
					"metadata":    map[string]any{"type": "object", "description": "Optional free-form metadata"},
				},
				"required": []string{"name", "entity_type"},
			}),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entities, errResult := parseEntities(req, deps.Logger)
		if errResult != nil {
			return errResult, nil
		}

		stored, err := deps.Graph.CreateEntities(ctx, entities)
		if err != nil {
			return HandleServiceError(err, "create_entities_failed")
		}

		response := createEntitiesResponse{Entities: make([]entityResult, len(stored))}
		for i, entity := range stored {
			// CreateEntities returns the caller's pointer for new rows and
			// the stored row for pre-existing ones.
			created := entity == entities[i]
			if created {
				response.Created++
			}
			response.Entities[i] = entityResult{
				ID:         entity.ID.String(),
				Name:       entity.Name,
				EntityType: entity.EntityType,
				Created:    created,
			}
		}

		jsonResult, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// parseEntities parses and validates the entities array parameter.
func parseEntities(req mcp.CallToolRequest, logger *zap.Logger) ([]*models.Entity, *mcp.CallToolResult) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, NewErrorResult("invalid_parameters", "invalid request arguments")
	}

	raw, err := extractArrayParam(args, "entities", logger)
	if err != nil {
		return nil, NewErrorResult("invalid_parameters", err.Error())
	}
	if len(raw) == 0 {
		return nil, NewErrorResult("invalid_parameters", "entities array cannot be empty")
	}
	if len(raw) > MaxBatchSize {
		return nil, NewErrorResultWithDetails(
			"invalid_parameters",
			fmt.Sprintf("too many entities: maximum %d allowed per call, got %d", MaxBatchSize, len(raw)),
			map[string]any{"max_allowed": MaxBatchSize, "received": len(raw)},
		)
	}

	entities := make([]*models.Entity, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, NewErrorResult("invalid_parameters",
				fmt.Sprintf("entity at index %d must be an object", i))
		}

		name, _ := obj["name"].(string)
		name = trimString(name)
		if name == "" {
			return nil, NewErrorResult("invalid_parameters",
				fmt.Sprintf("entity at index %d: 'name' is required and must be a non-empty string", i))
		}

		entityType, _ := obj["entity_type"].(string)
		entityType = trimString(entityType)
		if entityType == "" {
			return nil, NewErrorResult("invalid_parameters",
				fmt.Sprintf("entity at index %d: 'entity_type' is required and must be a non-empty string", i))
		}

		entity := &models.Entity{Name: name, EntityType: entityType}
		if summary, ok := obj["summary"].(string); ok {
			entity.Summary = trimString(summary)
		}
		if metadata, ok := obj["metadata"].(map[string]any); ok {
			entity.Metadata = metadata
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

type relationResult struct {
	ID           string `json:"id"`
	FromEntityID string `json:"from_entity_id"`
	ToEntityID   string `json:"to_entity_id"`
	RelationType string `json:"relation_type"`
}

type createRelationsResponse struct {
	Created   int              `json:"created"`
	Relations []relationResult `json:"relations"`
}

// registerCreateRelationsTool adds the create_relations tool for linking entities.
func registerCreateRelationsTool(s *server.MCPServer, deps *GraphToolDeps) {
	tool := mcp.NewTool(
		"create_relations",
		mcp.WithDescription(
			"Create typed, directed edges between existing entities in the knowledge graph. "+
				"Relations express structure: 'depends_on', 'owns', 'decided_by', 'part_of'. "+
				"Both endpoints must already exist - create them first with create_entities. "+
				"Endpoints are referenced by entity ID (from create_entities or search_graph). "+
				fmt.Sprintf("Maximum %d relations per call.", MaxBatchSize),
		),
		mcp.WithArray(
			"relations",
			mcp.Required(),
			mcp.Description("Array of relations, each with from_id, to_id and relation_type"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from_id":       map[string]any{"type": "string", "description": "UUID of the source entity"},
					"to_id":         map[string]any{"type": "string", "description": "UUID of the target entity"},
					"relation_type": map[string]any{"type": "string", "description": "Edge label (e.g. 'depends_on', 'owns')"},
				},
				"required": []string{"from_id", "to_id", "relation_type"},
			}),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		relations, errResult := parseRelations(req, deps.Logger)
		if errResult != nil {
			return errResult, nil
		}

		if err := deps.Graph.CreateRelations(ctx, relations); err != nil {
			return HandleServiceError(err, "create_relations_failed")
		}

		response := createRelationsResponse{
			Created:   len(relations),
			Relations: make([]relationResult, len(relations)),
		}
		for i, relation := range relations {
			response.Relations[i] = relationResult{
				ID:           relation.ID.String(),
				FromEntityID: relation.FromEntityID.String(),
				ToEntityID:   relation.ToEntityID.String(),
				RelationType: relation.RelationType,
			}
		}

		jsonResult, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// parseRelations parses and validates the relations array parameter.
func parseRelations(req mcp.CallToolRequest, logger *zap.Logger) ([]*models.Relation, *mcp.CallToolResult) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, NewErrorResult("invalid_parameters", "invalid request arguments")
	}

	raw, err := extractArrayParam(args, "relations", logger)
	if err != nil {
		return nil, NewErrorResult("invalid_parameters", err.Error())
	}
	if len(raw) == 0 {
		return nil, NewErrorResult("invalid_parameters", "relations array cannot be empty")
	}
	if len(raw) > MaxBatchSize {
		return nil, NewErrorResultWithDetails(
			"invalid_parameters",
			fmt.Sprintf("too many relations: maximum %d allowed per call, got %d", MaxBatchSize, len(raw)),
			map[string]any{"max_allowed": MaxBatchSize, "received": len(raw)},
		)
	}

	relations := make([]*models.Relation, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, NewErrorResult("invalid_parameters",
				fmt.Sprintf("relation at index %d must be an object", i))
		}

		fromID, errResult := parseUUIDField(obj, "from_id", i, "relation")
		if errResult != nil {
			return nil, errResult
		}
		toID, errResult := parseUUIDField(obj, "to_id", i, "relation")
		if errResult != nil {
			return nil, errResult
		}

		relationType, _ := obj["relation_type"].(string)
		relationType = trimString(relationType)
		if relationType == "" {
			return nil, NewErrorResult("invalid_parameters",
				fmt.Sprintf("relation at index %d: 'relation_type' is required and must be a non-empty string", i))
		}

		relations = append(relations, &models.Relation{
			FromEntityID: fromID,
			ToEntityID:   toID,
			RelationType: relationType,
		})
	}
	return relations, nil
}

// parseUUIDField extracts and parses a required UUID string from an object parameter.
func parseUUIDField(obj map[string]any, key string, index int, itemName string) (uuid.UUID, *mcp.CallToolResult) {
	value, _ := obj[key].(string)
	value = trimString(value)
	if value == "" {
		return uuid.Nil, NewErrorResult("invalid_parameters",
			fmt.Sprintf("%s at index %d: %q is required and must be a non-empty string", itemName, index, key))
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters",
			fmt.Sprintf("%s at index %d: %q is not a valid UUID: %q", itemName, index, key, value))
	}
	return id, nil
}

type addObservationsResponse struct {
	Added        int      `json:"added"`
	Observations []string `json:"observation_ids"`
}

// registerAddObservationsTool adds the add_observations tool for recording facts.
func registerAddObservationsTool(s *server.MCPServer, deps *GraphToolDeps) {
	tool := mcp.NewTool(
		"add_observations",
		mcp.WithDescription(
			"Record observations (facts) about existing entities. "+
				"Observations are the knowledge layer of the graph: things learned during work sessions "+
				"that should persist for other agents ('uses Postgres 16', 'owned by the payments team', "+
				"'deprecated in favor of billing-v2'). Embeddings are attached automatically when an "+
				"embedding provider is configured, making observations semantically searchable. "+
				fmt.Sprintf("Maximum %d observations per call. ", MaxBatchSize)+
				"Pass agent_id to attribute the observations to a registered agent.",
		),
		mcp.WithArray(
			"observations",
			mcp.Required(),
			mcp.Description("Array of observations, each with entity_id and content"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"entity_id": map[string]any{"type": "string", "description": "UUID of the entity the fact is about"},
					"content":   map[string]any{"type": "string", "description": "The fact to record"},
					"source":    map[string]any{"type": "string", "description": "Optional provenance (e.g. 'session 2024-11-02', 'README.md')"},
				},
				"required": []string{"entity_id", "content"},
			}),
		),
		mcp.WithString(
			"agent_id",
			mcp.Description("Optional - UUID of the agent recording these observations"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		observations, errResult := parseObservations(req, deps.Logger)
		if errResult != nil {
			return errResult, nil
		}

		if agentIDStr := trimString(getOptionalString(req, "agent_id")); agentIDStr != "" {
			agentID, err := uuid.Parse(agentIDStr)
			if err != nil {
				return NewErrorResult("invalid_parameters",
					fmt.Sprintf("invalid agent_id format: %q is not a valid UUID", agentIDStr)), nil
			}
			for _, observation := range observations {
				observation.AgentID = &agentID
			}
		}

		if err := deps.Graph.AddObservations(ctx, observations); err != nil {
			return HandleServiceError(err, "add_observations_failed")
		}

		response := addObservationsResponse{
			Added:        len(observations),
			Observations: make([]string, len(observations)),
		}
		for i, observation := range observations {
			response.Observations[i] = observation.ID.String()
		}

		jsonResult, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// parseObservations parses and validates the observations array parameter.
func parseObservations(req mcp.CallToolRequest, logger *zap.Logger) ([]*models.Observation, *mcp.CallToolResult) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, NewErrorResult("invalid_parameters", "invalid request arguments")
	}

	raw, err := extractArrayParam(args, "observations", logger)
	if err != nil {
		return nil, NewErrorResult("invalid_parameters", err.Error())
	}
	if len(raw) == 0 {
		return nil, NewErrorResult("invalid_parameters", "observations array cannot be empty")
	}
	if len(raw) > MaxBatchSize {
		return nil, NewErrorResultWithDetails(
			"invalid_parameters",
			fmt.Sprintf("too many observations: maximum %d allowed per call, got %d", MaxBatchSize, len(raw)),
			map[string]any{"max_allowed": MaxBatchSize, "received": len(raw)},
		)
	}

	observations := make([]*models.Observation, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, NewErrorResult("invalid_parameters",
				fmt.Sprintf("observation at index %d must be an object", i))
		}

		entityID, errResult := parseUUIDField(obj, "entity_id", i, "observation")
		if errResult != nil {
			return nil, errResult
		}

		content, _ := obj["content"].(string)
		content = trimString(content)
		if content == "" {
			return nil, NewErrorResult("invalid_parameters",
				fmt.Sprintf("observation at index %d: 'content' is required and must be a non-empty string", i))
		}

		observation := &models.Observation{EntityID: entityID, Content: content}
		if source, ok := obj["source"].(string); ok {
			observation.Source = trimString(source)
		}
		observations = append(observations, observation)
	}
	return observations, nil
}

type searchResultItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	EntityType string    `json:"entity_type"`
	Summary    string    `json:"summary,omitempty"`
	MatchType  string    `json:"match_type"`
	Score      *float64  `json:"score,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type searchGraphResponse struct {
	Query   string             `json:"query"`
	Count   int                `json:"count"`
	Results []searchResultItem `json:"results"`
}

// registerSearchGraphTool adds the search_graph tool for entity discovery.
func registerSearchGraphTool(s *server.MCPServer, deps *GraphToolDeps) {
	tool := mcp.NewTool(
		"search_graph",
		mcp.WithDescription(
			"Search the knowledge graph for entities matching a free-text query. "+
				"Semantic matches (vector similarity over names and summaries) come first when vector "+
				"search is available, followed by keyword matches. Use the returned entity IDs with "+
				"add_observations and create_relations, or get_context for a fuller briefing.",
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Free-text search query (e.g. 'billing settlement', 'who owns deployments')"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Max results to return (default: 20)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		query = trimString(query)
		if query == "" {
			return NewErrorResult("invalid_parameters", "parameter 'query' cannot be empty"), nil
		}

		limit, _ := getOptionalInt(req, "limit")

		results, err := deps.Graph.Search(ctx, query, limit)
		if err != nil {
			return HandleServiceError(err, "search_failed")
		}

		response := searchGraphResponse{
			Query:   query,
			Count:   len(results),
			Results: make([]searchResultItem, len(results)),
		}
		for i, result := range results {
			response.Results[i] = searchResultItem{
				ID:         result.Entity.ID.String(),
				Name:       result.Entity.Name,
				EntityType: result.Entity.EntityType,
				Summary:    result.Entity.Summary,
				MatchType:  result.MatchType,
				Score:      result.Score,
				UpdatedAt:  result.Entity.UpdatedAt,
			}
		}

		jsonResult, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
