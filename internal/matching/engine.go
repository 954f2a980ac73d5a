package matching

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/pkg/apperror"
	"github.com/abdoElHodaky/smartfixapi/internal/scoring"
)

// defaultRadiusKm — радиус поиска исполнителей при автоподборе.
const defaultRadiusKm = 25.0

// ProviderSource описывает взаимодействие движка с каталогом исполнителей.
type ProviderSource interface {
	// FindCandidates возвращает проверенных и доступных исполнителей
	// с пересечением услуг в радиусе от точки, отсортированных по
	// рейтингу и числу выполненных заявок по убыванию.
	FindCandidates(ctx context.Context, center geo.Point, radiusKm float64, services []string) ([]models.ServiceProvider, error)
}

// RequestSource описывает взаимодействие движка с хранилищем заявок.
type RequestSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	// ListPendingInArea возвращает ожидающие заявки нужных типов услуг
	// внутри круга, исключая заявки, на которые исполнитель уже
	// откликался (в любом статусе отклика).
	ListPendingInArea(ctx context.Context, center geo.Point, radiusKm float64, services []string, excludeProviderID uuid.UUID) ([]models.ServiceRequest, error)
}

// Criteria задаёт параметры подбора исполнителей.
type Criteria struct {
	Location               geo.Point
	RadiusKm               float64
	Services               []string
	BudgetMax              float64
	ScheduledDate          time.Time
	EstimatedDurationHours float64
}

// ScoredRequest — заявка, аннотированная для ленты рекомендаций.
type ScoredRequest struct {
	Request       models.ServiceRequest `json:"request"`
	PriorityScore int                   `json:"priority_score"`
	DistanceKm    float64               `json:"distance_km"`
}

// Engine подбирает исполнителей под заявку и заявки под исполнителя.
// Движок только читает данные; уведомление найденных исполнителей —
// забота вызывающего кода.
type Engine struct {
	providers ProviderSource
	requests  RequestSource
	now       func() time.Time
}

// NewEngine создаёт движок подбора.
func NewEngine(providers ProviderSource, requests RequestSource) *Engine {
	return &Engine{
		providers: providers,
		requests:  requests,
		now:       time.Now,
	}
}

// SetClock подменяет источник времени (для тестов).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// FindMatchingProviders возвращает исполнителей, способных выполнить
// заявку, в порядке лучшие-первыми. Порядок кандидатов из каталога
// (рейтинг, затем выполненные заявки) сохраняется среди прошедших фильтры.
func (e *Engine) FindMatchingProviders(ctx context.Context, request *models.ServiceRequest, criteria Criteria) ([]models.ServiceProvider, error) {
	if criteria.RadiusKm <= 0 {
		criteria.RadiusKm = defaultRadiusKm
	}

	candidates, err := e.providers.FindCandidates(ctx, criteria.Location, criteria.RadiusKm, criteria.Services)
	if err != nil {
		return nil, err
	}

	weekday := weekdayName(criteria.ScheduledDate)

	matched := make([]models.ServiceProvider, 0, len(candidates))
	for _, provider := range candidates {
		// Радиус предвыборки — верхняя граница; собственная зона
		// обслуживания исполнителя может быть меньше.
		if geo.DistanceKm(request.Location(), provider.Center()) > provider.ServiceRadiusKm {
			continue
		}
		if !fitsBudget(&provider, criteria) {
			continue
		}
		if !provider.AvailableOn(weekday) {
			continue
		}
		matched = append(matched, provider)
	}

	return matched, nil
}

// fitsBudget отсекает исполнителей, чья почасовая оценка заведомо выше
// максимального бюджета. Исполнители без почасовой ставки не
// отсеиваются: их цена определяется позже, фиксированным прайсом
// или откликом.
func fitsBudget(provider *models.ServiceProvider, criteria Criteria) bool {
	if provider.HourlyRate == nil {
		return true
	}
	duration := criteria.EstimatedDurationHours
	if duration <= 0 {
		duration = 1
	}
	return *provider.HourlyRate*duration <= criteria.BudgetMax
}

// RecommendationsForProvider возвращает ожидающие заявки, подходящие
// исполнителю, отсортированные по убыванию priority score.
func (e *Engine) RecommendationsForProvider(ctx context.Context, provider *models.ServiceProvider, limit int) ([]ScoredRequest, error) {
	if limit <= 0 {
		limit = 20
	}

	requests, err := e.requests.ListPendingInArea(ctx, provider.Center(), provider.ServiceRadiusKm, provider.Services, provider.ID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	scored := make([]ScoredRequest, 0, len(requests))
	for _, request := range requests {
		scored = append(scored, ScoredRequest{
			Request:       request,
			PriorityScore: scoring.PriorityScore(&request, now),
			DistanceKm:    geo.DistanceKm(request.Location(), provider.Center()),
		})
	}

	// Stable: при равной оценке сохраняется порядок выборки.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PriorityScore > scored[j].PriorityScore
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// AutoMatch выводит критерии подбора из самой заявки и делегирует
// FindMatchingProviders. Радиус предвыборки фиксированный.
func (e *Engine) AutoMatch(ctx context.Context, requestID uuid.UUID) (*models.ServiceRequest, []models.ServiceProvider, error) {
	request, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if request == nil {
		return nil, nil, apperror.ErrRequestNotFound
	}

	criteria := Criteria{
		Location:               request.Location(),
		RadiusKm:               defaultRadiusKm,
		Services:               []string{request.ServiceType},
		BudgetMax:              request.BudgetMax,
		ScheduledDate:          request.ScheduledDate,
		EstimatedDurationHours: request.EstimatedDurationHours,
	}

	providers, err := e.FindMatchingProviders(ctx, request, criteria)
	if err != nil {
		return nil, nil, err
	}
	return request, providers, nil
}

// weekdayName возвращает имя дня недели в нижнем регистре,
// как оно хранится в расписании исполнителя.
func weekdayName(date time.Time) string {
	return strings.ToLower(date.Weekday().String())
}
