package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
)

// ConversationRepository provides data access for conversations and their
// messages.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetConversationWithMessages(ctx context.Context, id uuid.UUID) (*models.ConversationWithMessages, error)

	// AddMessage appends a turn and bumps the conversation's updated_at.
	AddMessage(ctx context.Context, message *models.Message) error
	// ListRecentMessages returns the most recent turns in chronological order.
	ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error)
}

type conversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *database.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	now := time.Now()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now

	var title any
	if conv.Title != "" {
		title = conv.Title
	}

	query := `
		INSERT INTO conversations (id, agent_id, title, provider, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		conv.ID, conv.AgentID, title, conv.Provider, conv.Model,
		conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

func (r *conversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT id, agent_id, title, provider, model, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	var conv models.Conversation
	var title *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.AgentID, &title, &conv.Provider, &conv.Model,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if title != nil {
		conv.Title = *title
	}

	return &conv, nil
}

func (r *conversationRepository) GetConversationWithMessages(ctx context.Context, id uuid.UUID) (*models.ConversationWithMessages, error) {
	conv, err := r.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	query := messageSelect + `
		WHERE conversation_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation messages: %w", err)
	}
	defer rows.Close()

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	return &models.ConversationWithMessages{Conversation: conv, Messages: messages}, nil
}

func (r *conversationRepository) AddMessage(ctx context.Context, message *models.Message) error {
	now := time.Now()
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.CreatedAt = now

	query := `
		INSERT INTO messages (id, conversation_id, role, content, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		message.ID, message.ConversationID, message.Role, message.Content,
		message.TokenCount, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}

	touch := `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	if _, err := r.db.Exec(ctx, touch, message.ConversationID, now); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return nil
}

func (r *conversationRepository) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Most recent turns, returned in chronological order.
	query := messageSelect + `
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

const messageSelect = `
	SELECT id, conversation_id, role, content, token_count, created_at
	FROM messages`

func collectMessages(rows pgx.Rows) ([]*models.Message, error) {
	messages := make([]*models.Message, 0)
	for rows.Next() {
		var message models.Message
		err := rows.Scan(
			&message.ID, &message.ConversationID, &message.Role, &message.Content,
			&message.TokenCount, &message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}
