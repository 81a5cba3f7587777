package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/services"
)

// CreateConversationRequest for POST /api/chat/conversations
type CreateConversationRequest struct {
	Title   string `json:"title,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// SendMessageRequest for POST /api/chat/conversations/{cid}/messages
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ChatHandler handles conversation HTTP requests.
type ChatHandler struct {
	chat   services.ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/conversations", h.CreateConversation)
	mux.HandleFunc("GET /api/chat/conversations/{cid}", h.GetConversation)
	mux.HandleFunc("POST /api/chat/conversations/{cid}/messages", h.SendMessage)
}

// CreateConversation handles POST /api/chat/conversations
func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	if !h.chat.Available() {
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "chat_unavailable", "No LLM provider is configured"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var agentID *uuid.UUID
	if req.AgentID != "" {
		parsed, err := uuid.Parse(req.AgentID)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_agent_id", "Invalid agent ID format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		agentID = &parsed
	}

	conversation, err := h.chat.CreateConversation(r.Context(), agentID, strings.TrimSpace(req.Title))
	if err != nil {
		h.logger.Error("Failed to create conversation", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "create_conversation_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: conversation}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetConversation handles GET /api/chat/conversations/{cid}
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := ParseConversationID(w, r, h.logger)
	if !ok {
		return
	}

	conversation, err := h.chat.GetConversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "conversation_not_found", "Conversation not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get conversation", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_conversation_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: conversation}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SendMessage handles POST /api/chat/conversations/{cid}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := ParseConversationID(w, r, h.logger)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "empty_message", "Message content cannot be empty"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.chat.SendMessage(r.Context(), conversationID, req.Content)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "conversation_not_found", "Conversation not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to send message",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadGateway, "send_message_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
