package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// detailObservationLimit caps the observations embedded in an entity detail
// response; the full list is available through the MCP surface.
const detailObservationLimit = 20

// CreateEntityRequest for POST /api/entities
type CreateEntityRequest struct {
	Name       string         `json:"name"`
	EntityType string         `json:"entity_type"`
	Summary    string         `json:"summary,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AddObservationRequest for POST /api/entities/{eid}/observations
type AddObservationRequest struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// EntityListResponse for GET /api/entities
type EntityListResponse struct {
	Entities []*models.Entity `json:"entities"`
	Total    int              `json:"total"`
}

// EntityDetailResponse represents an entity with its observations and edges.
type EntityDetailResponse struct {
	Entity       *models.Entity        `json:"entity"`
	Observations []*models.Observation `json:"observations"`
	Relations    []*models.Relation    `json:"relations"`
}

// EntitiesHandler handles knowledge graph entity HTTP requests.
type EntitiesHandler struct {
	graph  services.GraphService
	logger *zap.Logger
}

// NewEntitiesHandler creates a new entities handler.
func NewEntitiesHandler(graph services.GraphService, logger *zap.Logger) *EntitiesHandler {
	return &EntitiesHandler{graph: graph, logger: logger}
}

// RegisterRoutes registers the entity handler's routes on the given mux.
func (h *EntitiesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/entities", h.List)
	mux.HandleFunc("POST /api/entities", h.Create)
	mux.HandleFunc("GET /api/entities/{eid}", h.Get)
	mux.HandleFunc("DELETE /api/entities/{eid}", h.Delete)
	mux.HandleFunc("POST /api/entities/{eid}/observations", h.AddObservation)
}

// List handles GET /api/entities
// Supports optional query parameters: type (entity type filter), limit.
func (h *EntitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	entityType := strings.TrimSpace(r.URL.Query().Get("type"))
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	entities, err := h.graph.ListEntities(r.Context(), entityType, limit)
	if err != nil {
		h.logger.Error("Failed to list entities", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_entities_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := EntityListResponse{Entities: entities, Total: len(entities)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/entities
func (h *EntitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	entity := &models.Entity{
		Name:       strings.TrimSpace(req.Name),
		EntityType: strings.TrimSpace(req.EntityType),
		Summary:    req.Summary,
		Metadata:   req.Metadata,
	}

	if err := h.graph.CreateEntity(r.Context(), entity); err != nil {
		h.logger.Error("Failed to create entity", zap.String("name", req.Name), zap.Error(err))
		if errors.Is(err, apperrors.ErrConflict) {
			if err := ErrorResponse(w, http.StatusConflict, "entity_exists", "An entity with this name and type already exists"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if isInputError(err) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_entity", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if err := ErrorResponse(w, http.StatusInternalServerError, "create_entity_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: entity}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/entities/{eid}
func (h *EntitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	entity, err := h.graph.GetEntity(r.Context(), entityID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "entity_not_found", "Entity not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get entity", zap.String("entity_id", entityID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_entity_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	observations, err := h.graph.ListObservations(r.Context(), entityID, detailObservationLimit)
	if err != nil {
		h.logger.Error("Failed to list observations", zap.String("entity_id", entityID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_observations_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	relations, err := h.graph.ListRelationsForEntity(r.Context(), entityID)
	if err != nil {
		h.logger.Error("Failed to list relations", zap.String("entity_id", entityID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_relations_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := EntityDetailResponse{
		Entity:       entity,
		Observations: observations,
		Relations:    relations,
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/entities/{eid}
func (h *EntitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.graph.DeleteEntity(r.Context(), entityID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "entity_not_found", "Entity not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to delete entity", zap.String("entity_id", entityID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "delete_entity_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]string{"status": "deleted"}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AddObservation handles POST /api/entities/{eid}/observations
func (h *EntitiesHandler) AddObservation(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req AddObservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	observation := &models.Observation{
		EntityID: entityID,
		Content:  strings.TrimSpace(req.Content),
		Source:   strings.TrimSpace(req.Source),
	}
	if req.AgentID != "" {
		agentID, err := uuid.Parse(req.AgentID)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_agent_id", "Invalid agent ID format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		observation.AgentID = &agentID
	}

	if err := h.graph.AddObservation(r.Context(), observation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "entity_not_found", "Entity not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if isInputError(err) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_observation", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to add observation", zap.String("entity_id", entityID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "add_observation_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: observation}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
