package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/repository/common"
)

// ConversationRepository отвечает за каналы переписки по заявкам.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository создаёт новый экземпляр.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateForRequest создаёт канал для заявки. Повторный вызов для той же
// заявки возвращает уже существующий канал: уникальный индекс по
// request_id превращает гонку двойного создания в no-op.
func (r *ConversationRepository) CreateForRequest(ctx context.Context, requestID, requesterID, providerUserID uuid.UUID) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (id, request_id, requester_id, provider_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, uuid.New(), requestID, requesterID, providerUserID); err != nil {
		return nil, fmt.Errorf("conversation repository: create %w", err)
	}
	return r.GetByRequestID(ctx, requestID)
}

// GetByRequestID возвращает канал по заявке.
func (r *ConversationRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Conversation, error) {
	return common.GetByField[models.Conversation](ctx, r.db, "conversations", "request_id", requestID, ErrConversationNotFound)
}

// GetByID возвращает канал по идентификатору.
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return common.GetByID[models.Conversation](ctx, r.db, "conversations", id, ErrConversationNotFound)
}

// ListByUser возвращает каналы, в которых участвует пользователь.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	query := `
		SELECT id, request_id, requester_id, provider_id, created_at
		FROM conversations
		WHERE requester_id = $1 OR provider_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &conversations, query, userID); err != nil {
		return nil, fmt.Errorf("conversation repository: list by user %w", err)
	}
	return conversations, nil
}
