package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/llm"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

func newTestChatService(client llm.LLMClient, contextSvc ContextService) (ChatService, *mockConversationRepo) {
	conversations := newMockConversationRepo()
	if contextSvc == nil {
		contextSvc = &mockContextService{}
	}
	svc := NewChatService(conversations, contextSvc, client, "openai", zap.NewNop())
	return svc, conversations
}

func TestChatService_Unavailable(t *testing.T) {
	svc, _ := newTestChatService(nil, nil)
	ctx := context.Background()

	assert.False(t, svc.Available())

	_, err := svc.CreateConversation(ctx, nil, "untitled")
	assert.Error(t, err)

	_, err = svc.SendMessage(ctx, uuid.New(), "hello")
	assert.Error(t, err)
}

func TestChatService_CreateConversation(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.Model = "gpt-4o-mini"
	svc, conversations := newTestChatService(client, nil)

	conversation, err := svc.CreateConversation(context.Background(), nil, "design review")
	require.NoError(t, err)

	assert.Equal(t, "openai", conversation.Provider)
	assert.Equal(t, "gpt-4o-mini", conversation.Model)
	assert.Equal(t, "design review", conversation.Title)
	assert.Contains(t, conversations.conversations, conversation.ID)
}

func TestChatService_SendMessage_PersistsTurn(t *testing.T) {
	var gotPrompt, gotSystem string
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		gotPrompt = prompt
		gotSystem = systemMessage
		return &llm.GenerateResult{
			Content:          "The ledger service handles settlement.",
			PromptTokens:     42,
			CompletionTokens: 7,
			TotalTokens:      49,
		}, nil
	}
	contextSvc := &mockContextService{rendered: "Knowledge graph context:\n\nEntity: ledger (service)"}
	svc, conversations := newTestChatService(client, contextSvc)
	ctx := context.Background()

	conversation, err := svc.CreateConversation(ctx, nil, "")
	require.NoError(t, err)

	result, err := svc.SendMessage(ctx, conversation.ID, "what does ledger do?")
	require.NoError(t, err)

	assert.Equal(t, "The ledger service handles settlement.", result.Message.Content)
	assert.Equal(t, models.MessageRoleAssistant, result.Message.Role)
	require.NotNil(t, result.Message.TokenCount)
	assert.Equal(t, 7, *result.Message.TokenCount)
	assert.Equal(t, 42, result.PromptTokens)
	assert.Equal(t, 7, result.CompletionTokens)

	// Both turns are persisted in order.
	transcript := conversations.messages[conversation.ID]
	require.Len(t, transcript, 2)
	assert.Equal(t, models.MessageRoleUser, transcript[0].Role)
	assert.Equal(t, models.MessageRoleAssistant, transcript[1].Role)

	// The prompt carries the transcript, the system message the context.
	assert.Contains(t, gotPrompt, "User: what does ledger do?")
	assert.True(t, strings.HasSuffix(gotPrompt, "Assistant:"))
	assert.Contains(t, gotSystem, "Knowledge graph context")
}

func TestChatService_SendMessage_ConversationMissing(t *testing.T) {
	svc, _ := newTestChatService(llm.NewMockLLMClient(), nil)

	_, err := svc.SendMessage(context.Background(), uuid.New(), "hello")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChatService_SendMessage_ContextFailureDegrades(t *testing.T) {
	var gotSystem string
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		gotSystem = systemMessage
		return &llm.GenerateResult{Content: "answer"}, nil
	}
	contextSvc := &mockContextService{renderErr: apperrors.ErrUnsafeInput}
	svc, _ := newTestChatService(client, contextSvc)
	ctx := context.Background()

	conversation, err := svc.CreateConversation(ctx, nil, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conversation.ID, "how do I quote '; in SQL?")
	require.NoError(t, err)

	// Context retrieval failed; the turn still completes without it.
	assert.Equal(t, chatSystemPrompt, gotSystem)
}

func TestChatService_SendMessage_ProviderErrorKeepsUserTurn(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		return nil, llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, nil)
	}
	svc, conversations := newTestChatService(client, nil)
	ctx := context.Background()

	conversation, err := svc.CreateConversation(ctx, nil, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conversation.ID, "hello")
	require.Error(t, err)

	// The user turn is already persisted when the provider call fails.
	transcript := conversations.messages[conversation.ID]
	require.Len(t, transcript, 1)
	assert.Equal(t, models.MessageRoleUser, transcript[0].Role)
}

func TestChatService_SendMessage_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResult, error) {
		return nil, llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, nil)
	}
	svc, _ := newTestChatService(client, nil)
	ctx := context.Background()

	conversation, err := svc.CreateConversation(ctx, nil, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(ctx, conversation.ID, "hello")
		require.Error(t, err)
	}
	providerCalls := client.GenerateResponseCalls

	// The breaker is open: the next turn fails without reaching the provider.
	_, err = svc.SendMessage(ctx, conversation.ID, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, providerCalls, client.GenerateResponseCalls)
}
