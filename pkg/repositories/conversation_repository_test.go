//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/testhelpers"
)

func setupConversationRepo(t *testing.T) ConversationRepository {
	t.Helper()
	db := testhelpers.NewIsolatedDB(t)
	testhelpers.CreateManagedTables(t, db, false)
	return NewConversationRepository(db)
}

func TestConversationRepository_CreateAndGet(t *testing.T) {
	repo := setupConversationRepo(t)
	ctx := context.Background()

	conv := &models.Conversation{
		Title:    "schema questions",
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
	require.NoError(t, repo.CreateConversation(ctx, conv))

	fetched, err := repo.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "schema questions", fetched.Title)
	assert.Equal(t, "openai", fetched.Provider)
	assert.Nil(t, fetched.AgentID)

	_, err = repo.GetConversation(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConversationRepository_AddMessageTouchesConversation(t *testing.T) {
	repo := setupConversationRepo(t)
	ctx := context.Background()

	conv := &models.Conversation{Provider: "openai", Model: "gpt-4o-mini"}
	require.NoError(t, repo.CreateConversation(ctx, conv))
	createdUpdatedAt := conv.UpdatedAt

	tokens := 12
	message := &models.Message{
		ConversationID: conv.ID,
		Role:           models.MessageRoleUser,
		Content:        "what tables exist?",
		TokenCount:     &tokens,
	}
	require.NoError(t, repo.AddMessage(ctx, message))

	fetched, err := repo.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, fetched.UpdatedAt.Before(createdUpdatedAt))

	with, err := repo.GetConversationWithMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, with.Messages, 1)
	assert.Equal(t, "what tables exist?", with.Messages[0].Content)
	require.NotNil(t, with.Messages[0].TokenCount)
	assert.Equal(t, 12, *with.Messages[0].TokenCount)
}

func TestConversationRepository_TranscriptOrder(t *testing.T) {
	repo := setupConversationRepo(t)
	ctx := context.Background()

	conv := &models.Conversation{Provider: "anthropic", Model: "claude-sonnet-4"}
	require.NoError(t, repo.CreateConversation(ctx, conv))

	roles := []string{models.MessageRoleUser, models.MessageRoleAssistant, models.MessageRoleUser}
	for i, role := range roles {
		require.NoError(t, repo.AddMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			Role:           role,
			Content:        fmt.Sprintf("turn %d", i),
		}))
	}

	with, err := repo.GetConversationWithMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, with.Messages, 3)
	for i := range with.Messages {
		assert.Equal(t, fmt.Sprintf("turn %d", i), with.Messages[i].Content)
	}
}

func TestConversationRepository_ListRecentMessages(t *testing.T) {
	repo := setupConversationRepo(t)
	ctx := context.Background()

	conv := &models.Conversation{Provider: "openai", Model: "gpt-4o-mini"}
	require.NoError(t, repo.CreateConversation(ctx, conv))

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AddMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			Role:           models.MessageRoleUser,
			Content:        fmt.Sprintf("turn %d", i),
		}))
	}

	recent, err := repo.ListRecentMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// The most recent two turns, oldest first.
	assert.Equal(t, "turn 3", recent[0].Content)
	assert.Equal(t, "turn 4", recent[1].Content)
}

func TestConversationRepository_AgentAttribution(t *testing.T) {
	db := testhelpers.NewIsolatedDB(t)
	testhelpers.CreateManagedTables(t, db, false)
	repo := NewConversationRepository(db)
	agents := NewAgentRepository(db)
	ctx := context.Background()

	agent := &models.Agent{Name: "researcher"}
	require.NoError(t, agents.Create(ctx, agent))

	conv := &models.Conversation{AgentID: &agent.ID, Provider: "openai", Model: "gpt-4o-mini"}
	require.NoError(t, repo.CreateConversation(ctx, conv))

	fetched, err := repo.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.AgentID)
	assert.Equal(t, agent.ID, *fetched.AgentID)
}
