package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abdoElHodaky/smartfixapi/internal/http/handlers/common"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
	"github.com/abdoElHodaky/smartfixapi/internal/service"
	"github.com/abdoElHodaky/smartfixapi/internal/validation"
)

// ProviderHandler отвечает за профили исполнителей и отзывы.
type ProviderHandler struct {
	providers *repository.ProviderRepository
	requests  *service.RequestService
	matches   *service.MatchService
}

// NewProviderHandler создаёт новый хэндлер.
func NewProviderHandler(providers *repository.ProviderRepository, requests *service.RequestService, matches *service.MatchService) *ProviderHandler {
	return &ProviderHandler{providers: providers, requests: requests, matches: matches}
}

type providerProfileRequest struct {
	BusinessName    string                  `json:"business_name" binding:"required"`
	Phone           *string                 `json:"phone"`
	CenterLongitude float64                 `json:"center_longitude"`
	CenterLatitude  float64                 `json:"center_latitude"`
	ServiceRadiusKm float64                 `json:"service_radius_km" binding:"required"`
	Services        []string                `json:"services" binding:"required"`
	HourlyRate      *float64                `json:"hourly_rate"`
	FixedPrices     models.PriceMap         `json:"fixed_prices"`
	Availability    models.WeekAvailability `json:"availability"`
	IsAvailable     *bool                   `json:"is_available"`
}

type createReviewRequest struct {
	RequestID string  `json:"request_id" binding:"required"`
	Rating    int     `json:"rating" binding:"required"`
	Comment   *string `json:"comment"`
}

// CreateProfile обрабатывает POST /providers.
func (h *ProviderHandler) CreateProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req providerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса: "+err.Error())
		return
	}

	if err := validation.ValidateCoordinates(req.CenterLongitude, req.CenterLatitude); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if req.ServiceRadiusKm <= 0 {
		common.RespondBadRequest(c, "service_radius_km должен быть положительным")
		return
	}
	if len(req.Services) == 0 {
		common.RespondBadRequest(c, "services не может быть пустым")
		return
	}

	if _, err := h.providers.GetByUserID(c.Request.Context(), userID); err == nil {
		common.RespondError(c, http.StatusConflict, "профиль исполнителя уже существует")
		return
	} else if !errors.Is(err, repository.ErrProviderNotFound) {
		common.Fail(c, err)
		return
	}

	provider := &models.ServiceProvider{
		UserID:          userID,
		BusinessName:    req.BusinessName,
		Phone:           req.Phone,
		CenterLongitude: req.CenterLongitude,
		CenterLatitude:  req.CenterLatitude,
		ServiceRadiusKm: req.ServiceRadiusKm,
		Services:        req.Services,
		HourlyRate:      req.HourlyRate,
		FixedPrices:     req.FixedPrices,
		Availability:    req.Availability,
		IsAvailable:     true,
	}
	if req.IsAvailable != nil {
		provider.IsAvailable = *req.IsAvailable
	}

	if err := h.providers.Create(c.Request.Context(), provider); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, provider)
}

// UpdateProfile обрабатывает PUT /providers/me.
func (h *ProviderHandler) UpdateProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	provider, err := h.providers.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req providerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса: "+err.Error())
		return
	}

	if err := validation.ValidateCoordinates(req.CenterLongitude, req.CenterLatitude); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	provider.BusinessName = req.BusinessName
	provider.Phone = req.Phone
	provider.CenterLongitude = req.CenterLongitude
	provider.CenterLatitude = req.CenterLatitude
	provider.ServiceRadiusKm = req.ServiceRadiusKm
	provider.Services = req.Services
	provider.HourlyRate = req.HourlyRate
	provider.FixedPrices = req.FixedPrices
	provider.Availability = req.Availability
	if req.IsAvailable != nil {
		provider.IsAvailable = *req.IsAvailable
	}

	if err := h.providers.Update(c.Request.Context(), provider); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, provider)
}

// GetProvider обрабатывает GET /providers/:id.
func (h *ProviderHandler) GetProvider(c *gin.Context) {
	providerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	provider, err := h.providers.GetByID(c.Request.Context(), providerID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, provider)
}

// Recommendations обрабатывает GET /providers/me/recommendations.
func (h *ProviderHandler) Recommendations(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	scored, err := h.matches.Recommendations(c.Request.Context(), userID, limit)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": scored})
}

// ListReviews обрабатывает GET /providers/:id/reviews.
func (h *ProviderHandler) ListReviews(c *gin.Context) {
	providerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	reviews, err := h.providers.ListReviews(c.Request.Context(), providerID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// CreateReview обрабатывает POST /providers/:id/reviews. Отзыв может
// оставить только клиент закрытой заявки этого исполнителя.
func (h *ProviderHandler) CreateReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	providerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "request_id и rating обязательны")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		common.RespondBadRequest(c, "rating должен быть от 1 до 5")
		return
	}

	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		common.RespondBadRequest(c, "request_id должен быть валидным UUID")
		return
	}

	request, err := h.requests.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if request.RequesterID != userID {
		common.RespondError(c, http.StatusForbidden, "отзыв может оставить только клиент заявки")
		return
	}
	if request.Status != models.RequestStatusCompleted || !request.CustomerApproval {
		common.RespondBadRequest(c, "отзыв можно оставить только после подтверждения завершения")
		return
	}
	if request.ProviderID == nil || *request.ProviderID != providerID {
		common.RespondBadRequest(c, "заявка выполнена другим исполнителем")
		return
	}

	review := &models.Review{
		RequestID:  requestID,
		ReviewerID: userID,
		ProviderID: providerID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := h.providers.CreateReview(c.Request.Context(), review); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.providers.RefreshRating(c.Request.Context(), providerID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}
