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

// CreateRelationRequest for POST /api/relations
type CreateRelationRequest struct {
	FromID       string         `json:"from_id"`
	ToID         string         `json:"to_id"`
	RelationType string         `json:"relation_type"`
	Weight       *float64       `json:"weight,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RelationListResponse for GET /api/relations
type RelationListResponse struct {
	Relations []*models.Relation `json:"relations"`
	Total     int                `json:"total"`
}

// RelationsHandler handles knowledge graph relation HTTP requests.
type RelationsHandler struct {
	graph  services.GraphService
	logger *zap.Logger
}

// NewRelationsHandler creates a new relations handler.
func NewRelationsHandler(graph services.GraphService, logger *zap.Logger) *RelationsHandler {
	return &RelationsHandler{graph: graph, logger: logger}
}

// RegisterRoutes registers the relation handler's routes on the given mux.
func (h *RelationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/relations", h.List)
	mux.HandleFunc("POST /api/relations", h.Create)
}

// List handles GET /api/relations
func (h *RelationsHandler) List(w http.ResponseWriter, r *http.Request) {
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

	relations, err := h.graph.ListRelations(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list relations", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_relations_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := RelationListResponse{Relations: relations, Total: len(relations)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/relations
func (h *RelationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	fromID, err := uuid.Parse(strings.TrimSpace(req.FromID))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_from_id", "from_id must be a valid entity UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	toID, err := uuid.Parse(strings.TrimSpace(req.ToID))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_to_id", "to_id must be a valid entity UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	relation := &models.Relation{
		FromEntityID: fromID,
		ToEntityID:   toID,
		RelationType: strings.TrimSpace(req.RelationType),
		Weight:       req.Weight,
		Metadata:     req.Metadata,
	}

	if err := h.graph.CreateRelation(r.Context(), relation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "entity_not_found", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if isInputError(err) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_relation", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to create relation",
			zap.String("from_id", fromID.String()),
			zap.String("to_id", toID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "create_relation_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: relation}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
