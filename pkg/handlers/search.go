package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// SearchResponse for GET /api/search
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []*models.SearchResult `json:"results"`
	Total   int                    `json:"total"`
}

// SearchHandler handles knowledge graph search HTTP requests.
type SearchHandler struct {
	graph  services.GraphService
	logger *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(graph services.GraphService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{graph: graph, logger: logger}
}

// RegisterRoutes registers the search handler's routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", h.Search)
}

// Search handles GET /api/search?q=...&limit=...
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

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

	results, err := h.graph.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnsafeInput) {
			if err := ErrorResponse(w, http.StatusBadRequest, "unsafe_query", "Query failed input safety checks"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Search failed", zap.String("query", query), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "search_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := SearchResponse{Query: query, Results: results, Total: len(results)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
