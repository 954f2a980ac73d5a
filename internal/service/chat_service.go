package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/pkg/apperror"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
)

// ConversationRepository описывает хранилище каналов переписки.
type ConversationRepository interface {
	CreateForRequest(ctx context.Context, requestID, requesterID, providerUserID uuid.UUID) (*models.Conversation, error)
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
}

// ChatService управляет каналами общения клиента и исполнителя.
// Канал открывается после принятия отклика, по одному на заявку.
type ChatService struct {
	repo ConversationRepository
}

// NewChatService создаёт новый сервис переписки.
func NewChatService(repo ConversationRepository) *ChatService {
	return &ChatService{repo: repo}
}

// CreateChannel открывает канал по заявке. Повторный вызов безопасен и
// возвращает существующий канал.
func (s *ChatService) CreateChannel(ctx context.Context, requestID, requesterID, providerUserID uuid.UUID) (*models.Conversation, error) {
	return s.repo.CreateForRequest(ctx, requestID, requesterID, providerUserID)
}

// GetChannelForRequest возвращает канал заявки для её участника.
func (s *ChatService) GetChannelForRequest(ctx context.Context, requestID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.repo.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "канал общения не найден")
		}
		return nil, err
	}

	if conv.RequesterID != userID && conv.ProviderID != userID {
		return nil, apperror.ErrForbidden
	}

	return conv, nil
}

// ListChannels возвращает каналы пользователя.
func (s *ChatService) ListChannels(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	return s.repo.ListByUser(ctx, userID)
}
