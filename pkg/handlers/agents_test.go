package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

func TestAgentsHandler_List(t *testing.T) {
	t.Run("returns empty list when no agents", func(t *testing.T) {
		mockService := &mockGraphService{agents: []*models.Agent{}}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var response ApiResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !response.Success {
			t.Fatal("expected success=true")
		}

		dataBytes, err := json.Marshal(response.Data)
		if err != nil {
			t.Fatalf("failed to marshal data: %v", err)
		}

		var listResponse AgentListResponse
		if err := json.Unmarshal(dataBytes, &listResponse); err != nil {
			t.Fatalf("failed to unmarshal list response: %v", err)
		}

		if len(listResponse.Agents) != 0 {
			t.Fatalf("expected 0 agents, got %d", len(listResponse.Agents))
		}
		if listResponse.Total != 0 {
			t.Fatalf("expected total 0, got %d", listResponse.Total)
		}
	})

	t.Run("returns agents with correct data", func(t *testing.T) {
		agents := []*models.Agent{
			{
				ID:          uuid.New(),
				Name:        "planner",
				Role:        "planning",
				Description: "Decomposes tasks into steps",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			},
			{
				ID:        uuid.New(),
				Name:      "researcher",
				Role:      "retrieval",
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
		}

		mockService := &mockGraphService{agents: agents}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var response ApiResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		dataBytes, err := json.Marshal(response.Data)
		if err != nil {
			t.Fatalf("failed to marshal data: %v", err)
		}

		var listResponse AgentListResponse
		if err := json.Unmarshal(dataBytes, &listResponse); err != nil {
			t.Fatalf("failed to unmarshal list response: %v", err)
		}

		if listResponse.Total != 2 {
			t.Fatalf("expected total 2, got %d", listResponse.Total)
		}
		if listResponse.Agents[0].Name != "planner" {
			t.Errorf("expected name=planner, got %s", listResponse.Agents[0].Name)
		}
		if listResponse.Agents[0].Role != "planning" {
			t.Errorf("expected role=planning, got %s", listResponse.Agents[0].Role)
		}
	})

	t.Run("returns error on service failure", func(t *testing.T) {
		mockService := &mockGraphService{listAgentsErr: errors.New("database error")}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
		}
	})
}

func TestAgentsHandler_Create(t *testing.T) {
	t.Run("creates agent successfully", func(t *testing.T) {
		mockService := &mockGraphService{}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		body := CreateAgentRequest{
			Name:        "planner",
			Role:        "planning",
			Description: "Decomposes tasks into steps",
			Metadata:    map[string]any{"team": "core"},
		}
		bodyBytes, _ := json.Marshal(body)

		req := httptest.NewRequest(http.MethodPost, "/api/agents", bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
		}

		var response ApiResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !response.Success {
			t.Fatal("expected success=true")
		}

		dataBytes, err := json.Marshal(response.Data)
		if err != nil {
			t.Fatalf("failed to marshal data: %v", err)
		}

		var agent models.Agent
		if err := json.Unmarshal(dataBytes, &agent); err != nil {
			t.Fatalf("failed to unmarshal agent: %v", err)
		}

		if agent.ID == uuid.Nil {
			t.Error("expected agent ID to be assigned")
		}
		if agent.Name != "planner" {
			t.Errorf("expected name=planner, got %s", agent.Name)
		}
		if mockService.createdAgent == nil {
			t.Fatal("expected service to receive the agent")
		}
		if mockService.createdAgent.Role != "planning" {
			t.Errorf("expected role=planning, got %s", mockService.createdAgent.Role)
		}
	})

	t.Run("trims whitespace from name and role", func(t *testing.T) {
		mockService := &mockGraphService{}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		bodyBytes, _ := json.Marshal(CreateAgentRequest{Name: "  planner  ", Role: " planning "})
		req := httptest.NewRequest(http.MethodPost, "/api/agents", bytes.NewReader(bodyBytes))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
		}
		if mockService.createdAgent.Name != "planner" {
			t.Errorf("expected trimmed name, got %q", mockService.createdAgent.Name)
		}
		if mockService.createdAgent.Role != "planning" {
			t.Errorf("expected trimmed role, got %q", mockService.createdAgent.Role)
		}
	})

	t.Run("returns error for invalid JSON body", func(t *testing.T) {
		mockService := &mockGraphService{}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost, "/api/agents", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("returns conflict for duplicate name", func(t *testing.T) {
		mockService := &mockGraphService{
			createAgentErr: fmt.Errorf("agent planner: %w", apperrors.ErrConflict),
		}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		bodyBytes, _ := json.Marshal(CreateAgentRequest{Name: "planner"})
		req := httptest.NewRequest(http.MethodPost, "/api/agents", bytes.NewReader(bodyBytes))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
		}

		var resp map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "agent_exists" {
			t.Errorf("expected error=agent_exists, got %s", resp["error"])
		}
	})

	t.Run("returns bad request for validation failure", func(t *testing.T) {
		mockService := &mockGraphService{
			createAgentErr: errors.New("agent name is required"),
		}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		bodyBytes, _ := json.Marshal(CreateAgentRequest{})
		req := httptest.NewRequest(http.MethodPost, "/api/agents", bytes.NewReader(bodyBytes))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}

		var resp map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "invalid_agent" {
			t.Errorf("expected error=invalid_agent, got %s", resp["error"])
		}
	})
}

func TestAgentsHandler_Get(t *testing.T) {
	t.Run("returns agent by ID", func(t *testing.T) {
		agentID := uuid.New()
		mockService := &mockGraphService{
			agent: &models.Agent{ID: agentID, Name: "planner", Role: "planning"},
		}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/agents/"+agentID.String(), nil)
		req.SetPathValue("aid", agentID.String())

		rec := httptest.NewRecorder()
		handler.Get(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var response ApiResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		dataBytes, err := json.Marshal(response.Data)
		if err != nil {
			t.Fatalf("failed to marshal data: %v", err)
		}

		var agent models.Agent
		if err := json.Unmarshal(dataBytes, &agent); err != nil {
			t.Fatalf("failed to unmarshal agent: %v", err)
		}
		if agent.ID != agentID {
			t.Errorf("expected ID %s, got %s", agentID, agent.ID)
		}
	})

	t.Run("returns error for invalid agent ID", func(t *testing.T) {
		handler := NewAgentsHandler(&mockGraphService{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/api/agents/invalid", nil)
		req.SetPathValue("aid", "invalid")

		rec := httptest.NewRecorder()
		handler.Get(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("returns not found for missing agent", func(t *testing.T) {
		mockService := &mockGraphService{getAgentErr: notFoundErr("agent")}
		handler := NewAgentsHandler(mockService, zap.NewNop())

		agentID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/api/agents/"+agentID.String(), nil)
		req.SetPathValue("aid", agentID.String())

		rec := httptest.NewRecorder()
		handler.Get(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}

		var resp map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "agent_not_found" {
			t.Errorf("expected error=agent_not_found, got %s", resp["error"])
		}
	})
}
