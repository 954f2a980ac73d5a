package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
	"github.com/abdoElHodaky/smartfixapi/internal/matching"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/pkg/apperror"
	"github.com/abdoElHodaky/smartfixapi/internal/pricing"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
)

// Notifier доставляет события подбора заинтересованным пользователям.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, data any) (*models.Notification, error)
	NotifyMany(ctx context.Context, userIDs []uuid.UUID, event string, data any)
}

// MatchedProvider — исполнитель с предрасчётом стоимости для заявки.
type MatchedProvider struct {
	Provider      models.ServiceProvider `json:"provider"`
	DistanceKm    float64                `json:"distance_km"`
	EstimatedCost float64                `json:"estimated_cost"`
	CostBreakdown pricing.Breakdown      `json:"cost_breakdown"`
}

// MatchService — фасад движка подбора для HTTP-слоя и планировщика.
type MatchService struct {
	engine    *matching.Engine
	requests  *repository.RequestRepository
	providers *repository.ProviderRepository
	notifier  Notifier
}

// NewMatchService создаёт сервис подбора.
func NewMatchService(engine *matching.Engine, requests *repository.RequestRepository, providers *repository.ProviderRepository, notifier Notifier) *MatchService {
	return &MatchService{
		engine:    engine,
		requests:  requests,
		providers: providers,
		notifier:  notifier,
	}
}

// MatchProviders подбирает исполнителей под заявку её владельца и
// возвращает их с оценкой стоимости и расстоянием.
func (s *MatchService) MatchProviders(ctx context.Context, requesterID, requestID uuid.UUID) ([]MatchedProvider, error) {
	request, providers, err := s.autoMatch(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, apperror.ErrForbidden
	}
	return annotate(request, providers), nil
}

// Recommendations возвращает ленту подходящих заявок для исполнителя,
// лучшие первыми.
func (s *MatchService) Recommendations(ctx context.Context, providerUserID uuid.UUID, limit int) ([]matching.ScoredRequest, error) {
	provider, err := s.providers.GetByUserID(ctx, providerUserID)
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return nil, apperror.New(apperror.ErrCodeForbidden, "профиль исполнителя не найден")
		}
		return nil, err
	}
	return s.engine.RecommendationsForProvider(ctx, provider, limit)
}

// NotifyMatches подбирает исполнителей под заявку и уведомляет их о
// новой подходящей заявке. Возвращает число уведомлённых.
func (s *MatchService) NotifyMatches(ctx context.Context, requestID uuid.UUID) (int, error) {
	request, providers, err := s.autoMatch(ctx, requestID)
	if err != nil {
		return 0, err
	}
	if len(providers) == 0 {
		return 0, nil
	}

	userIDs := make([]uuid.UUID, 0, len(providers))
	for i := range providers {
		userIDs = append(userIDs, providers[i].UserID)
	}

	if s.notifier != nil {
		s.notifier.NotifyMany(ctx, userIDs, EventNewMatch, map[string]any{
			"request_id":   request.ID,
			"title":        request.Title,
			"service_type": request.ServiceType,
			"priority":     request.Priority,
		})
	}
	return len(userIDs), nil
}

func (s *MatchService) autoMatch(ctx context.Context, requestID uuid.UUID) (*models.ServiceRequest, []models.ServiceProvider, error) {
	request, providers, err := s.engine.AutoMatch(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, nil, apperror.ErrRequestNotFound
		}
		return nil, nil, err
	}
	return request, providers, nil
}

func annotate(request *models.ServiceRequest, providers []models.ServiceProvider) []MatchedProvider {
	location := request.Location()
	matched := make([]MatchedProvider, 0, len(providers))
	for i := range providers {
		p := providers[i]
		est := pricing.EstimateCost(&p, request)
		matched = append(matched, MatchedProvider{
			Provider:      p,
			DistanceKm:    geo.DistanceKm(location, p.Center()),
			EstimatedCost: est.EstimatedCost,
			CostBreakdown: est.Breakdown,
		})
	}
	return matched
}
