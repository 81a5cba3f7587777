package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/llm"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/retry"
)

const (
	chatHistoryLimit = 20
	chatTemperature  = 0.7
)

const chatSystemPrompt = `You are MindMesh, a collaboration assistant backed by a shared knowledge graph.
Ground your answers in the graph context below when it is relevant. When the
context does not cover the question, say so instead of guessing.`

// ChatResult is the outcome of one chat turn: the persisted assistant
// message plus the provider's token usage.
type ChatResult struct {
	Message          *models.Message `json:"message"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
}

// ChatService manages conversations against the configured LLM provider.
type ChatService interface {
	// Available reports whether a chat provider is configured.
	Available() bool

	// CreateConversation starts a conversation, optionally owned by an agent.
	CreateConversation(ctx context.Context, agentID *uuid.UUID, title string) (*models.Conversation, error)

	// GetConversation returns a conversation with its full transcript.
	GetConversation(ctx context.Context, id uuid.UUID) (*models.ConversationWithMessages, error)

	// SendMessage appends a user turn, calls the provider with graph context
	// in the system prompt, and persists the assistant reply.
	SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*ChatResult, error)
}

type chatService struct {
	conversations repositories.ConversationRepository
	contextSvc    ContextService
	client        llm.LLMClient // nil when no provider is configured
	provider      string
	breaker       *llm.CircuitBreaker
	logger        *zap.Logger
}

// NewChatService creates a new ChatService. client may be nil, which makes
// the service report unavailable.
func NewChatService(
	conversations repositories.ConversationRepository,
	contextSvc ContextService,
	client llm.LLMClient,
	provider string,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		conversations: conversations,
		contextSvc:    contextSvc,
		client:        client,
		provider:      provider,
		breaker:       llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()),
		logger:        logger.Named("chat-service"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) Available() bool {
	return s.client != nil
}

func (s *chatService) CreateConversation(ctx context.Context, agentID *uuid.UUID, title string) (*models.Conversation, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no chat provider configured")
	}

	conversation := &models.Conversation{
		AgentID:  agentID,
		Title:    title,
		Provider: s.provider,
		Model:    s.client.GetModel(),
	}
	if err := s.conversations.CreateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Info("Conversation started",
		zap.String("conversation_id", conversation.ID.String()),
		zap.String("model", conversation.Model))
	return conversation, nil
}

func (s *chatService) GetConversation(ctx context.Context, id uuid.UUID) (*models.ConversationWithMessages, error) {
	return s.conversations.GetConversationWithMessages(ctx, id)
}

func (s *chatService) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*ChatResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no chat provider configured")
	}
	if content == "" {
		return nil, fmt.Errorf("message content is required")
	}

	if _, err := s.conversations.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	userMessage := &models.Message{
		ConversationID: conversationID,
		Role:           models.MessageRoleUser,
		Content:        content,
	}
	if err := s.conversations.AddMessage(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	history, err := s.conversations.ListRecentMessages(ctx, conversationID, chatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	systemMessage := s.buildSystemMessage(ctx, content)

	if allowed, err := s.breaker.Allow(); !allowed {
		return nil, err
	}

	var result *llm.GenerateResult
	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		var callErr error
		result, callErr = s.client.GenerateResponse(ctx, renderTranscript(history), systemMessage, chatTemperature)
		return callErr
	})
	if err != nil {
		s.breaker.RecordFailure()
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	s.breaker.RecordSuccess()

	completionTokens := result.CompletionTokens
	assistantMessage := &models.Message{
		ConversationID: conversationID,
		Role:           models.MessageRoleAssistant,
		Content:        result.Content,
		TokenCount:     &completionTokens,
	}
	if err := s.conversations.AddMessage(ctx, assistantMessage); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	s.logger.Info("Chat turn completed",
		zap.String("conversation_id", conversationID.String()),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens))

	return &ChatResult{
		Message:          assistantMessage,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}

// buildSystemMessage appends retrieved graph context to the base prompt.
// Context retrieval failures degrade to a context-free prompt rather than
// failing the chat turn.
func (s *chatService) buildSystemMessage(ctx context.Context, query string) string {
	contextBlock, err := s.contextSvc.Render(ctx, query, 0)
	if err != nil {
		s.logger.Warn("Context retrieval failed, answering without graph context", zap.Error(err))
		return chatSystemPrompt
	}
	if contextBlock == "" {
		return chatSystemPrompt
	}
	return chatSystemPrompt + "\n\n" + contextBlock
}

// renderTranscript flattens recent turns into a single prompt for providers
// that take one prompt string.
func renderTranscript(messages []*models.Message) string {
	var sb strings.Builder
	for _, message := range messages {
		switch message.Role {
		case models.MessageRoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(message.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}
