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

// IngestDocumentRequest for POST /api/documents
type IngestDocumentRequest struct {
	Title   string `json:"title"`
	Source  string `json:"source,omitempty"`
	Content string `json:"content"`
}

// DocumentResponse wraps a document with its chunk inventory.
type DocumentResponse struct {
	Document *models.Document `json:"document"`
	Created  bool             `json:"created"`
	Chunks   int              `json:"chunks"`
}

// DocumentDetailResponse for GET /api/documents/{did}
type DocumentDetailResponse struct {
	Document *models.Document        `json:"document"`
	Chunks   []*models.DocumentChunk `json:"chunks"`
}

// DocumentsHandler handles document ingestion HTTP requests.
type DocumentsHandler struct {
	documents services.DocumentService
	logger    *zap.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(documents services.DocumentService, logger *zap.Logger) *DocumentsHandler {
	return &DocumentsHandler{documents: documents, logger: logger}
}

// RegisterRoutes registers the document handler's routes on the given mux.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.Ingest)
	mux.HandleFunc("GET /api/documents/{did}", h.Get)
}

// Ingest handles POST /api/documents
// Content is deduplicated by checksum: re-posting identical content returns
// the existing document with created=false and status 200 instead of 201.
func (h *DocumentsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	document, created, err := h.documents.Ingest(r.Context(), strings.TrimSpace(req.Title), strings.TrimSpace(req.Source), req.Content)
	if err != nil {
		if isInputError(err) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_document", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to ingest document", zap.String("title", req.Title), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "ingest_document_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	chunks, err := h.documents.GetChunks(r.Context(), document.ID)
	if err != nil {
		h.logger.Error("Failed to count chunks", zap.String("document_id", document.ID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_chunks_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response := DocumentResponse{Document: document, Created: created, Chunks: len(chunks)}
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/documents/{did}
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	documentID, ok := ParseDocumentID(w, r, h.logger)
	if !ok {
		return
	}

	document, err := h.documents.Get(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "document_not_found", "Document not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get document", zap.String("document_id", documentID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_document_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	chunks, err := h.documents.GetChunks(r.Context(), documentID)
	if err != nil {
		h.logger.Error("Failed to get chunks", zap.String("document_id", documentID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_chunks_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := DocumentDetailResponse{Document: document, Chunks: chunks}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
