package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// CreateAgentRequest for POST /api/agents
type CreateAgentRequest struct {
	Name        string         `json:"name"`
	Role        string         `json:"role,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AgentListResponse for GET /api/agents
type AgentListResponse struct {
	Agents []*models.Agent `json:"agents"`
	Total  int             `json:"total"`
}

// AgentsHandler handles agent registration HTTP requests.
type AgentsHandler struct {
	graph  services.GraphService
	logger *zap.Logger
}

// NewAgentsHandler creates a new agents handler.
func NewAgentsHandler(graph services.GraphService, logger *zap.Logger) *AgentsHandler {
	return &AgentsHandler{graph: graph, logger: logger}
}

// RegisterRoutes registers the agent handler's routes on the given mux.
func (h *AgentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/agents", h.List)
	mux.HandleFunc("POST /api/agents", h.Create)
	mux.HandleFunc("GET /api/agents/{aid}", h.Get)
}

// List handles GET /api/agents
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.graph.ListAgents(r.Context())
	if err != nil {
		h.logger.Error("Failed to list agents", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_agents_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := AgentListResponse{Agents: agents, Total: len(agents)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/agents
func (h *AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	agent := &models.Agent{
		Name:        strings.TrimSpace(req.Name),
		Role:        strings.TrimSpace(req.Role),
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	if err := h.graph.CreateAgent(r.Context(), agent); err != nil {
		h.logger.Error("Failed to create agent", zap.String("name", req.Name), zap.Error(err))
		if errors.Is(err, apperrors.ErrConflict) {
			if err := ErrorResponse(w, http.StatusConflict, "agent_exists", "An agent with this name already exists"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if isInputError(err) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_agent", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if err := ErrorResponse(w, http.StatusInternalServerError, "create_agent_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: agent}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/agents/{aid}
func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	agentID, ok := ParseAgentID(w, r, h.logger)
	if !ok {
		return
	}

	agent, err := h.graph.GetAgent(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "agent_not_found", "Agent not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get agent", zap.String("agent_id", agentID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_agent_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: agent}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// isInputError reports whether a service error was caused by the request
// payload rather than a server failure.
func isInputError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"is required", "cannot be empty", "invalid"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
